package validator

import (
	"strings"
	"testing"
)

type sampleIssue struct {
	Title    string `json:"title" validate:"required,max=500"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(sampleIssue{Title: "login fails on mobile", Priority: "high"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(sampleIssue{Priority: "urgent"})
	if err == nil {
		t.Fatal("expected validation failure")
	}

	ve, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(ve) != 2 {
		t.Fatalf("expected two failures, got %d", len(ve))
	}
	if ve[0].Field != "title" {
		t.Fatalf("expected json tag name, got %s", ve[0].Field)
	}
	if !strings.Contains(ve.Error(), "priority failed on oneof") {
		t.Fatalf("unexpected error string: %s", ve.Error())
	}
}

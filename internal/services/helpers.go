package services

import (
	"context"
	"regexp"
	"strings"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func containsString(values []string, target string) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		return false
	}
	for _, value := range values {
		if strings.TrimSpace(value) == target {
			return true
		}
	}
	return false
}

var (
	htmlTagPattern      = regexp.MustCompile(`<[^>]*>`)
	jsProtocolPattern   = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)\bon\w+\s*=`)
	dataURIPattern      = regexp.MustCompile(`(?i)data:text/html`)
)

// sanitizeText strips HTML tags and script-bearing fragments from free-text
// fields before they are persisted.
func sanitizeText(text string) string {
	if text == "" {
		return text
	}
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = jsProtocolPattern.ReplaceAllString(text, "")
	text = eventHandlerPattern.ReplaceAllString(text, "")
	text = dataURIPattern.ReplaceAllString(text, "")
	return text
}

// normaliseOptionalID maps empty strings to nil so foreign keys stay NULL
// instead of pointing at "".
func normaliseOptionalID(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

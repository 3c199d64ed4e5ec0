package logger

import "testing"

func TestInitSetsGlobalLogger(t *testing.T) {
	if err := Init("debug"); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if Logger() == nil {
		t.Fatal("expected global logger to be configured")
	}
}

func TestInitFallsBackToInfoOnBadLevel(t *testing.T) {
	if err := Init("not-a-level"); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if !Logger().Core().Enabled(0) { // InfoLevel == 0
		t.Fatal("expected info level to be enabled")
	}
}

func TestWithModuleReturnsChild(t *testing.T) {
	if err := Init("info"); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	child := WithModule("issues")
	if child == nil {
		t.Fatal("expected child logger")
	}
}

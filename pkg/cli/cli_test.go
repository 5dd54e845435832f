package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestCommandError_Unwrap(t *testing.T) {
	inner := errors.New("listener busy")
	err := NewCommandError("run", inner)

	if !errors.Is(err, inner) {
		t.Error("CommandError does not unwrap to the cause")
	}
	if got := err.Error(); got != "command run failed: listener busy" {
		t.Errorf("Error() = %q", got)
	}
}

func TestConfigError_Message(t *testing.T) {
	withField := NewConfigError("gateway.listen_address", "missing port")
	if got := withField.Error(); got != "config error in gateway.listen_address: missing port" {
		t.Errorf("Error() = %q", got)
	}

	noField := NewConfigError("", "file unreadable")
	if got := noField.Error(); got != "config error: file unreadable" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNewFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatJSON).FormatTo(&buf, map[string]int{"rules": 3}); err != nil {
		t.Fatalf("json format: %v", err)
	}
	var out map[string]int
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if out["rules"] != 3 {
		t.Errorf("rules = %d, want 3", out["rules"])
	}

	buf.Reset()
	if err := NewFormatter(FormatText).FormatTo(&buf, "12 entries verified"); err != nil {
		t.Fatalf("text format: %v", err)
	}
	if buf.String() != "12 entries verified\n" {
		t.Errorf("text output = %q", buf.String())
	}
}

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/config"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	logger.Info("enforcement decision", "rule_id", "R1", "allowed", false)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "enforcement decision" || entry["rule_id"] != "R1" {
		t.Errorf("entry = %v", entry)
	}
	if entry["allowed"] != false {
		t.Errorf("allowed = %v", entry["allowed"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	logger.Info("should be dropped")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Error("info leaked through warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn missing")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "verbose"}, nil); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := New(config.LoggingConfig{Format: "xml"}, nil); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestNew_RedactsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", Redact: true}, &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	logger.Info("kyc submitted",
		"contact", "driver 9876543210 filed PAN ABCDE1234F",
		"email", "ravi.k@rodistaa.com")

	out := buf.String()
	for _, leak := range []string{"9876543210", "ABCDE1234F", "ravi.k@"} {
		if strings.Contains(out, leak) {
			t.Errorf("sensitive value %q leaked: %s", leak, out)
		}
	}
	if !strings.Contains(out, "PHONE-***") || !strings.Contains(out, "PAN-***") {
		t.Errorf("masks missing: %s", out)
	}
}

func TestRedactor(t *testing.T) {
	r := NewRedactor()
	tests := []struct {
		name string
		in   string
		deny []string
	}{
		{"phone", "call +91 9812345678 now", []string{"9812345678"}},
		{"aadhaar", "aadhaar 1234 5678 9012 on file", []string{"1234 5678 9012"}},
		{"bearer", "Authorization: Bearer abc.def-ghi", []string{"abc.def-ghi"}},
		{"api key", "api_key: zk91xPLm", []string{"zk91xPLm"}},
		{"email keeps domain", "ops@rodistaa.com", []string{"ops@"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Redact(tt.in)
			for _, leak := range tt.deny {
				if strings.Contains(out, leak) {
					t.Errorf("Redact(%q) = %q leaked %q", tt.in, out, leak)
				}
			}
		})
	}

	if got := r.Redact("shipment S-1042 delivered"); got != "shipment S-1042 delivered" {
		t.Errorf("clean string mutated: %q", got)
	}
}

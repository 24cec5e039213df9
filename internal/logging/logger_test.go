// Package logging tests for logger configuration.
package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// TestComponentField verifies the component field is attached to entries.
func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	Init("debug", false)
	SetOutput(&buf)
	defer SetOutput(zerolog.Nop())

	log := Component("queue")
	log.Info().Str("item_id", "abc").Msg("enqueued")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}

	if entry["component"] != "queue" {
		t.Errorf("component = %v, want queue", entry["component"])
	}
	if entry["item_id"] != "abc" {
		t.Errorf("item_id = %v, want abc", entry["item_id"])
	}
	if entry["message"] != "enqueued" {
		t.Errorf("message = %v, want enqueued", entry["message"])
	}
}

// TestParseLevel verifies level parsing and its default.
func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}

	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestLevelFiltering verifies entries below the configured level are dropped.
func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init("warn", false)
	SetOutput(&buf)
	defer SetOutput(zerolog.Nop())

	log := Component("test")
	log.Debug().Msg("should not appear")
	log.Warn().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Error("debug entry should have been filtered at warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn entry should have been written")
	}
}

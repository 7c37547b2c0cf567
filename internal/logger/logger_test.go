package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("statement_id", "st-1").Msg("statement ingested")

	out := buf.String()
	if !strings.Contains(out, "statement ingested") || !strings.Contains(out, "st-1") {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)
	ctx := WithContext(context.Background(), log)

	fromCtx := FromContext(ctx)
	fromCtx.Info().Msg("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("logger did not round-trip through context: %s", buf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("fallback logger should be enabled")
	}
}

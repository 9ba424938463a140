package logging

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFieldHelpers(t *testing.T) {
	t.Parallel()
	testErr := errors.New("probe diverged")
	tests := []struct {
		name  string
		field Field
		key   string
		value any
	}{
		{"String", String("tier", "probed-64"), "tier", "probed-64"},
		{"Int", Int("width", 640), "width", 640},
		{"Uint64", Uint64("generation", 12345678901234567890), "generation", uint64(12345678901234567890)},
		{"Float64", Float64("zoom", 42.5), "zoom", 42.5},
		{"Err", Err(testErr), "error", testErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.field.Key != tt.key {
				t.Errorf("Key = %q, want %q", tt.field.Key, tt.key)
			}
			if tt.field.Value != tt.value {
				t.Errorf("Value = %v, want %v", tt.field.Value, tt.value)
			}
		})
	}

	t.Run("Err with nil error", func(t *testing.T) {
		f := Err(nil)
		if f.Key != "error" || f.Value != nil {
			t.Errorf("Err(nil) = %+v", f)
		}
	})
}

func TestNewLogger_ComponentField(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := NewLogger(&buf, "pipeline")
	logger.Info("frame presented", Uint64("generation", 3))

	output := buf.String()
	for _, want := range []string{"pipeline", "frame presented", `"generation":3`} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got: %s", want, output)
		}
	}
}

func TestNewDefaultLogger(t *testing.T) {
	t.Parallel()
	if NewDefaultLogger() == nil {
		t.Fatal("NewDefaultLogger returned nil")
	}
}

func TestZerologAdapter_Levels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		log      func(Logger)
		contains []string
	}{
		{
			name:     "info with fields",
			log:      func(l Logger) { l.Info("stage done", String("stage", "coloring"), Int("pixels", 4096)) },
			contains: []string{"stage done", "coloring", "4096", "info"},
		},
		{
			name:     "error with cause",
			log:      func(l Logger) { l.Error("probe failed", errors.New("canceled"), Float64("zoom", 12.5)) },
			contains: []string{"probe failed", "canceled", "12.5", "error"},
		},
		{
			name:     "error with nil cause",
			log:      func(l Logger) { l.Error("warning", nil) },
			contains: []string{"warning", "error"},
		},
		{
			name:     "debug",
			log:      func(l Logger) { l.Debug("batch", Uint64("offset", 500)) },
			contains: []string{"batch", "500", "debug"},
		},
		{
			name:     "printf",
			log:      func(l Logger) { l.Printf("tier %s at zoom %d", "raw-64", 20) },
			contains: []string{"tier raw-64 at zoom 20"},
		},
		{
			name:     "println",
			log:      func(l Logger) { l.Println("hello", "world") },
			contains: []string{"hello", "world"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.log(NewZerologAdapter(zerolog.New(&buf).Level(zerolog.DebugLevel)))
			output := buf.String()
			for _, want := range tt.contains {
				if !strings.Contains(output, want) {
					t.Errorf("output should contain %q, got: %s", want, output)
				}
			}
		})
	}
}

func TestZerologAdapter_applyFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		field    Field
		contains string
	}{
		{"int64", Field{Key: "big", Value: int64(9223372036854775807)}, "9223372036854775807"},
		{"uint32", Field{Key: "step", Value: uint32(77)}, "77"},
		{"bool", Field{Key: "escaped", Value: true}, "true"},
		{"error", Field{Key: "cause", Value: errors.New("oops")}, "oops"},
		{"interface", Field{Key: "size", Value: struct{ W int }{W: 9}}, "9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			NewLogger(&buf, "test").Info("test", tt.field)
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("output should contain %q, got: %s", tt.contains, buf.String())
			}
		})
	}
}

func TestStdLoggerAdapter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		log      func(Logger)
		contains []string
	}{
		{"info", func(l Logger) { l.Info("render", String("out", "a.png")) }, []string{"[INFO]", "render", "out=a.png"}},
		{"error", func(l Logger) { l.Error("render failed", errors.New("boom")) }, []string{"[ERROR]", "render failed", "boom"}},
		{"debug", func(l Logger) { l.Debug("trace", Int("line", 42)) }, []string{"[DEBUG]", "trace", "line=42"}},
		{"printf", func(l Logger) { l.Printf("value is %d", 123) }, []string{"value is 123"}},
		{"println", func(l Logger) { l.Println("a", "b") }, []string{"a b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.log(NewStdLoggerAdapter(log.New(&buf, "", 0)))
			for _, want := range tt.contains {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output should contain %q, got: %s", want, buf.String())
				}
			}
		})
	}
}

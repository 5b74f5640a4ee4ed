package shared

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLogger(t *testing.T) {
	t.Run("SetLogLevel", func(t *testing.T) {
		tc := []struct {
			name    string
			level   string
			want    log.Level
			wantErr bool
		}{
			{name: "debug", level: "debug", want: log.DebugLevel},
			{name: "warn", level: "warn", want: log.WarnLevel},
			{name: "empty keeps current level", level: "", want: log.InfoLevel},
			{name: "unknown level", level: "loud", want: log.InfoLevel, wantErr: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				logger := NewLogger(&bytes.Buffer{})
				err := SetLogLevel(logger, tt.level)
				if tt.wantErr {
					if !errors.Is(err, ErrInvalidConfig) {
						t.Fatalf("expected ErrInvalidConfig, got %v", err)
					}
				} else if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if logger.GetLevel() != tt.want {
					t.Errorf("expected level %v, got %v", tt.want, logger.GetLevel())
				}
			})
		}
	})

	t.Run("WithLogger adds fields", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := WithLogger(NewLogger(buf), "component", "auth")
		logger.Info("refreshed")

		if !strings.Contains(buf.String(), "component=auth") {
			t.Errorf("expected component field in output, got %q", buf.String())
		}
	})

	t.Run("GenerateID is unique", func(t *testing.T) {
		if GenerateID() == GenerateID() {
			t.Error("expected distinct ids")
		}
	})
}

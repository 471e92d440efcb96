package logging

import (
	"bytes"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/config"
)

func TestConfigureLogger(t *testing.T) {
	cases := []struct {
		name   string
		level  string
		format string
		debug  bool
		want   log.Level
	}{
		{name: "default", want: log.InfoLevel},
		{name: "warn", level: "warn", want: log.WarnLevel},
		{name: "debug flag wins", level: "error", debug: true, want: log.DebugLevel},
		{name: "unknown level", level: "loud", want: log.InfoLevel},
		{name: "json", level: "debug", format: "json", want: log.DebugLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfigWithRoot(t.TempDir())
			cfg.LogLevel, cfg.LogFormat, cfg.Debug = tc.level, tc.format, tc.debug

			logger := log.New()
			var buf bytes.Buffer
			logger.SetOutput(&buf)
			ConfigureLogger(logger, cfg)

			if logger.GetLevel() != tc.want {
				t.Fatalf("level = %s, want %s", logger.GetLevel(), tc.want)
			}
			logger.WithField("session_id", "s1").Warn("probe")
			out := buf.String()
			if tc.format == "json" && !strings.HasPrefix(out, "{") {
				t.Fatalf("expected JSON output, got %q", out)
			}
			if !strings.Contains(out, "session_id") {
				t.Fatalf("fields missing from %q", out)
			}
		})
	}
}

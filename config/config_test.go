package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cpc-project/nvm3/logging"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nvm3.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Unable to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tt := []struct {
		name    string
		file    string
		env     map[string]string
		want    func(*Config)
		wantErr error
		wantMsg string
	}{
		{
			name: "defaults",
			want: func(*Config) {},
		},
		{
			name: "file",
			file: `
instance: cpcd_1
tracing: true
timeout: 250ms
socket_dir: /run/cpcd
log:
  level: debug
  path: /var/log/nvm3.log
  prefix: app
  append: false
metrics:
  enabled: true
`,
			want: func(c *Config) {
				c.Instance = "cpcd_1"
				c.Tracing = true
				c.Timeout = 250 * time.Millisecond
				c.SocketDir = "/run/cpcd"
				c.Log = LogConfig{Level: logging.LevelDebug, Path: "/var/log/nvm3.log", Prefix: "app"}
				c.Metrics.Enabled = true
			},
		},
		{
			name: "environment overrides file",
			file: "instance: cpcd_1\nlog:\n  level: info\n",
			env:  map[string]string{"NVM3_INSTANCE": "cpcd_7", "NVM3_LOG_LEVEL": "trace", "NVM3_TIMEOUT": "2s"},
			want: func(c *Config) {
				c.Instance = "cpcd_7"
				c.Timeout = 2 * time.Second
				c.Log.Level = logging.LevelTrace
			},
		},
		{
			name:    "negative timeout",
			file:    "timeout: -1s\n",
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "unknown level",
			file:    "log:\n  level: loud\n",
			wantMsg: logging.ErrInvalidLevel.Error(),
		},
		{
			name:    "instance with separator",
			env:     map[string]string{"NVM3_INSTANCE": "../cpcd_0"},
			wantErr: ErrInvalidInstance,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			var path string
			if tc.file != "" {
				path = writeFile(t, tc.file)
			}

			cfg, err := Load(path)
			if tc.wantMsg != "" {
				// decode hook errors are reported by message through mapstructure
				if err == nil || !strings.Contains(err.Error(), tc.wantMsg) {
					t.Fatalf("Unexpected error: got %v, want %q", err, tc.wantMsg)
				}
				return
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Unexpected error: got %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}

			want := Default()
			tc.want(want)
			if *cfg != *want {
				t.Fatalf("Unexpected config: got %+v, want %+v", *cfg, *want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if *cfg != *Default() {
		t.Fatalf("Unexpected config: %+v", *cfg)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeFile(t, "instance: [unterminated\n")); err == nil {
		t.Fatalf("Expected an error for malformed YAML")
	}
}

func TestFromViper(t *testing.T) {
	v := NewViper()
	v.Set("timeout", "1500ms")
	v.Set("log.level", "error")

	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper returned error: %v", err)
	}
	if cfg.Timeout != 1500*time.Millisecond || cfg.Log.Level != logging.LevelError {
		t.Fatalf("Unexpected config: %+v", *cfg)
	}

	s, us := cfg.TimeoutParts()
	if s != 1 || us != 500000 {
		t.Fatalf("Unexpected timeout parts: got %d %d, want 1 500000", s, us)
	}
}

// Tests for the config package covering [Load] and [Parse] behavior
// (defaults, overrides, missing files, malformed input, unknown keys),
// [Config.Validate], [Seed], [Config.Save] round-trips, and [Annotated].

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// ///////////////////////////////////////////////
// Load
// ///////////////////////////////////////////////

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		noFile  bool
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:   "missing file yields defaults",
			noFile: true,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if !reflect.DeepEqual(cfg, DefaultConfig()) {
					t.Errorf("cfg = %+v, want defaults", cfg)
				}
			},
		},
		{
			name: "partial override preserves other defaults",
			config: `
[assets]
logo = "https://cdn.example.com/logo.png"

[server]
addr = ":9000"
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Assets.Logo != "https://cdn.example.com/logo.png" {
					t.Errorf("Logo = %q", cfg.Assets.Logo)
				}
				if cfg.Server.Addr != ":9000" {
					t.Errorf("Addr = %q", cfg.Server.Addr)
				}
				def := DefaultConfig()
				if cfg.Assets.TimeoutSeconds != def.Assets.TimeoutSeconds {
					t.Errorf("TimeoutSeconds = %d, want default %d", cfg.Assets.TimeoutSeconds, def.Assets.TimeoutSeconds)
				}
				if cfg.Fonts.SerifFallback != def.Fonts.SerifFallback {
					t.Errorf("SerifFallback = %q, want default", cfg.Fonts.SerifFallback)
				}
			},
		},
		{
			name:   "branding can be disabled",
			config: "[assets]\nlogo = \"\"\n",
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Assets.Logo != "" {
					t.Errorf("Logo = %q, want empty", cfg.Assets.Logo)
				}
			},
		},
		{
			name:    "malformed toml",
			config:  "[assets\nlogo = ",
			wantErr: "parse config",
		},
		{
			name:    "unknown key rejected",
			config:  "[assets]\nlogo_opacity = 0.5\n",
			wantErr: "unknown keys: assets.logo_opacity",
		},
		{
			name:    "future version rejected",
			config:  "version = 7\n",
			wantErr: "newer than supported",
		},
		{
			name:    "invalid value rejected",
			config:  "[log]\nlevel = \"loud\"\n",
			wantErr: "invalid log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if !tt.noFile {
				if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(tt.config), 0o644); err != nil {
					t.Fatalf("WriteFile: %v", err)
				}
			}

			cfg, err := Load(dir)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

// ///////////////////////////////////////////////
// Validate
// ///////////////////////////////////////////////

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults valid", func(c *Config) {}, ""},
		{"zero log size", func(c *Config) { c.Log.MaxSizeMB = 0 }, "log.max_size_mb"},
		{"bad serif fallback", func(c *Config) { c.Fonts.SerifFallback = "Noto Naskh" }, "fonts.serif_fallback"},
		{"empty serif fallback ok", func(c *Config) { c.Fonts.SerifFallback = "" }, ""},
		{"zero asset timeout", func(c *Config) { c.Assets.TimeoutSeconds = 0 }, "assets.timeout_seconds"},
		{"negative retries", func(c *Config) { c.Assets.RetryMax = -1 }, "assets.retry_max"},
		{"zero asset cap", func(c *Config) { c.Assets.MaxMegabytes = 0 }, "assets.max_megabytes"},
		{"zero pixel cap", func(c *Config) { c.Assets.MaxMegapixels = 0 }, "assets.max_megapixels"},
		{"endpoint without scheme", func(c *Config) { c.Content.Endpoint = "example.com/api" }, "content.endpoint"},
		{"endpoint ftp", func(c *Config) { c.Content.Endpoint = "ftp://example.com/api" }, "content.endpoint"},
		{"endpoint https ok", func(c *Config) { c.Content.Endpoint = "https://example.com/api/generate" }, ""},
		{"zero content timeout", func(c *Config) { c.Content.TimeoutSeconds = 0 }, "content.timeout_seconds"},
		{"empty database", func(c *Config) { c.Store.Database = "" }, "store.database"},
		{"empty uploads", func(c *Config) { c.Store.UploadsDir = "" }, "store.uploads_dir"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"wildcard origin ok", func(c *Config) { c.Server.AllowOrigins = []string{"*"} }, ""},
		{"bad origin", func(c *Config) { c.Server.AllowOrigins = []string{"localhost"} }, "server.allow_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Seed and Save
// ///////////////////////////////////////////////

func TestSeedWritesOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	wrote, err := Seed(dir, []byte("version = 1\n"))
	if err != nil || !wrote {
		t.Fatalf("first Seed = (%v, %v), want (true, nil)", wrote, err)
	}

	wrote, err = Seed(dir, []byte("[log]\nlevel = \"debug\"\n"))
	if err != nil || wrote {
		t.Fatalf("second Seed = (%v, %v), want (false, nil)", wrote, err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "config.toml"))
	if string(data) != "version = 1\n" {
		t.Errorf("seed overwrote existing config: %q", data)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Assets.Logo = "data:image/png;base64,AAAA"
	cfg.Server.AllowOrigins = []string{"*"}

	if err := cfg.Save(filepath.Join(dir, "config.toml")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, cfg)
	}
}

// ///////////////////////////////////////////////
// Annotated
// ///////////////////////////////////////////////

func TestAnnotatedParsesBackToDefaults(t *testing.T) {
	data, err := Annotated(DefaultConfig())
	if err != nil {
		t.Fatalf("Annotated: %v", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Annotated()): %v\n%s", err, data)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("annotated config drifted from defaults")
	}
}

func TestAnnotatedIncludesDocs(t *testing.T) {
	data, err := Annotated(DefaultConfig())
	if err != nil {
		t.Fatalf("Annotated: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"# ///// Assets /////",
		"# Branding mark drawn top-right on every export.",
		`# logo = ""`,
		"# Minimum log level: trace, debug, info, warn, error",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("annotated output missing %q", want)
		}
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, " ") {
			t.Errorf("indented line left in output: %q", line)
		}
	}
}

func TestConfigDocsKeysExist(t *testing.T) {
	data, err := Annotated(DefaultConfig())
	if err != nil {
		t.Fatalf("Annotated: %v", err)
	}
	for key := range ConfigDocs {
		last := key[strings.LastIndex(key, ".")+1:]
		if !strings.Contains(string(data), last) {
			t.Errorf("ConfigDocs key %q does not appear in encoded config", key)
		}
	}
}

func TestSectionName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"assets", "Assets"},
		{"server.tls", "Tls"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sectionName(tt.in); got != tt.want {
			t.Errorf("sectionName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

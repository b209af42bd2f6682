// Package config provides configuration loading and defaults for wisdomcard.
//
// Configuration is loaded from a TOML file in the user's data directory. It
// covers font sources, asset loading limits and branding, the content
// generation endpoint, the local store, the preview server and logging.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/wisdomcard/internal/atomicfile"
	"tools.zach/dev/wisdomcard/internal/logger"
	"tools.zach/dev/wisdomcard/internal/paths"
)

// CurrentVersion is the config schema version written by this build.
const CurrentVersion = 1

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version.
	Version int `toml:"version"`
	// Fonts holds font file locations for each family.
	Fonts FontsConfig `toml:"fonts"`
	// Assets holds background and branding asset settings.
	Assets AssetsConfig `toml:"assets"`
	// Content holds the generation endpoint settings.
	Content ContentConfig `toml:"content"`
	// Store holds the local uploads and schedule database settings.
	Store StoreConfig `toml:"store"`
	// Server holds the preview/export HTTP server settings.
	Server ServerConfig `toml:"server"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// FontsConfig holds font file locations. Empty paths use the bundled faces.
type FontsConfig struct {
	// Serif is the face used for primary-script (Arabic) and secondary
	// translation (Urdu) text.
	Serif string `toml:"serif"`
	// Sans is the plain face used for citations.
	Sans string `toml:"sans"`
	// SansItalic is the face used for quoted translations and story bodies.
	SansItalic string `toml:"sans_italic"`
	// SansBold is the face used for story headings.
	SansBold string `toml:"sans_bold"`
	// SerifFallback is a "google:Family:Weight" spec fetched and cached when
	// Serif is empty.
	SerifFallback string `toml:"serif_fallback"`
}

// AssetsConfig holds asset loading settings.
type AssetsConfig struct {
	// Logo is the branding mark locator: a path, URL, data: URL, "builtin",
	// or empty to disable branding.
	Logo string `toml:"logo"`
	// TimeoutSeconds bounds each remote asset fetch.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// RetryMax is the number of retries for transient fetch failures.
	RetryMax int `toml:"retry_max"`
	// MaxMegabytes caps the size of a single asset before decoding.
	MaxMegabytes int `toml:"max_megabytes"`
	// MaxMegapixels caps the decoded dimensions of a single image.
	MaxMegapixels int `toml:"max_megapixels"`
}

// ContentConfig holds the generation endpoint settings.
type ContentConfig struct {
	// Endpoint is the URL that answers {topic, view} generation requests.
	Endpoint string `toml:"endpoint"`
	// Cache keeps the last good response per topic and view for offline use.
	Cache bool `toml:"cache"`
	// TimeoutSeconds bounds each generation request.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// StoreConfig holds the local store settings. Relative paths resolve against
// the data directory.
type StoreConfig struct {
	// Database is the SQLite file path.
	Database string `toml:"database"`
	// UploadsDir is where uploaded background media is copied.
	UploadsDir string `toml:"uploads_dir"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `toml:"addr"`
	// AllowOrigins lists CORS origins permitted to call the API.
	AllowOrigins []string `toml:"allow_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Fonts: FontsConfig{
			SerifFallback: "google:Noto Naskh Arabic:400",
		},
		Assets: AssetsConfig{
			Logo:           paths.LogoBuiltin,
			TimeoutSeconds: 30,
			RetryMax:       2,
			MaxMegabytes:   25,
			MaxMegapixels:  40,
		},
		Content: ContentConfig{
			Endpoint:       "",
			Cache:          true,
			TimeoutSeconds: 60,
		},
		Store: StoreConfig{
			Database:   paths.DatabaseFile,
			UploadsDir: paths.UploadsDir,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8737",
			AllowOrigins: []string{"http://localhost:5173"},
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses dataDir/config.toml. A missing file yields
// DefaultConfig. Keys absent from the file keep their default values.
func Load(dataDir string) (*Config, error) {
	path := paths.DataDir{Root: dataDir}.Config()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML onto DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse config: unknown keys: %s", strings.Join(keys, ", "))
	}
	if cfg.Version > CurrentVersion {
		return nil, fmt.Errorf("config version %d is newer than supported version %d", cfg.Version, CurrentVersion)
	}
	cfg.Version = CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Seed writes the annotated default config to dataDir when none exists.
// It reports whether a file was written.
func Seed(dataDir string, annotated []byte) (bool, error) {
	path := paths.DataDir{Root: dataDir}.Config()
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return false, fmt.Errorf("create data dir: %w", err)
	}
	if err := atomicfile.Write(path, annotated, 0o644); err != nil {
		return false, fmt.Errorf("write default config: %w", err)
	}
	return true, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// googleSpecRe matches "google:<Family Name>:<weight>".
var googleSpecRe = regexp.MustCompile(`^google:[A-Za-z0-9 ]+:[1-9]00$`)

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if !logger.ValidLevel(c.Log.Level) {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	if c.Fonts.SerifFallback != "" && !googleSpecRe.MatchString(c.Fonts.SerifFallback) {
		return fmt.Errorf("invalid fonts.serif_fallback %q: must look like google:Family Name:400", c.Fonts.SerifFallback)
	}

	if c.Assets.TimeoutSeconds <= 0 {
		return fmt.Errorf("assets.timeout_seconds must be > 0, got %d", c.Assets.TimeoutSeconds)
	}
	if c.Assets.RetryMax < 0 {
		return fmt.Errorf("assets.retry_max must be >= 0, got %d", c.Assets.RetryMax)
	}
	if c.Assets.MaxMegabytes <= 0 {
		return fmt.Errorf("assets.max_megabytes must be > 0, got %d", c.Assets.MaxMegabytes)
	}
	if c.Assets.MaxMegapixels <= 0 {
		return fmt.Errorf("assets.max_megapixels must be > 0, got %d", c.Assets.MaxMegapixels)
	}

	if c.Content.Endpoint != "" {
		if err := validateHTTPURL(c.Content.Endpoint); err != nil {
			return fmt.Errorf("invalid content.endpoint: %w", err)
		}
	}
	if c.Content.TimeoutSeconds <= 0 {
		return fmt.Errorf("content.timeout_seconds must be > 0, got %d", c.Content.TimeoutSeconds)
	}

	if c.Store.Database == "" {
		return errors.New("store.database must not be empty")
	}
	if c.Store.UploadsDir == "" {
		return errors.New("store.uploads_dir must not be empty")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	for _, o := range c.Server.AllowOrigins {
		if o == "*" {
			continue
		}
		if err := validateHTTPURL(o); err != nil {
			return fmt.Errorf("invalid server.allow_origins entry: %w", err)
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: missing host", raw)
	}
	return nil
}

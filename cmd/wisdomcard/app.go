package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	wisdomcard "tools.zach/dev/wisdomcard"
	"tools.zach/dev/wisdomcard/internal/assets"
	"tools.zach/dev/wisdomcard/internal/compositor"
	"tools.zach/dev/wisdomcard/internal/config"
	"tools.zach/dev/wisdomcard/internal/content"
	"tools.zach/dev/wisdomcard/internal/export"
	"tools.zach/dev/wisdomcard/internal/fonts"
	"tools.zach/dev/wisdomcard/internal/library"
	"tools.zach/dev/wisdomcard/internal/logger"
	"tools.zach/dev/wisdomcard/internal/paths"
	"tools.zach/dev/wisdomcard/internal/store"
)

// ///////////////////////////////////////////////
// App
// ///////////////////////////////////////////////

// app carries the loaded configuration and I/O for one invocation.
type app struct {
	paths  DataPaths
	cfg    *config.Config
	log    *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// newApp prepares the data directory, seeds and loads the config, and
// opens the log file. WARN and above are also written to stderr. The
// returned io.Closer flushes the log file.
func newApp(dataDir string, stdin io.Reader, stdout, stderr io.Writer) (*app, io.Closer, error) {
	dp := DataPaths{Root: dataDir}
	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	if _, err := config.Seed(dp.Root, wisdomcard.DefaultConfigTOML); err != nil {
		fmt.Fprintf(stderr, "warning: failed to write default config: %v\n", err)
	}
	cfg, err := config.Load(dp.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, closer := logger.NewLogger(logger.Options{
		Path:         dp.Log(),
		Level:        logger.ParseLevel(cfg.Log.Level),
		MaxSizeMB:    cfg.Log.MaxSizeMB,
		Console:      stderr,
		ConsoleLevel: slog.LevelWarn,
	})
	slog.SetDefault(log)

	return &app{paths: dp, cfg: cfg, log: log, stdin: stdin, stdout: stdout, stderr: stderr}, closer, nil
}

// ///////////////////////////////////////////////
// Component Builders
// ///////////////////////////////////////////////

func (a *app) loader() *assets.HTTPLoader {
	wd, _ := os.Getwd()
	return assets.NewLoader(assets.Options{
		Timeout:   time.Duration(a.cfg.Assets.TimeoutSeconds) * time.Second,
		RetryMax:  a.cfg.Assets.RetryMax,
		MaxBytes:  int64(a.cfg.Assets.MaxMegabytes) << 20,
		MaxPixels: int64(a.cfg.Assets.MaxMegapixels) * 1_000_000,
		BaseDir:   wd,
		Logger:    a.log,
	})
}

func (a *app) fonts(ctx context.Context) (*fonts.Registry, error) {
	fc := a.cfg.Fonts
	reg, err := fonts.Load(ctx, fonts.Options{
		Files: map[fonts.Family]string{
			fonts.Serif:      fc.Serif,
			fonts.Sans:       fc.Sans,
			fonts.SansItalic: fc.SansItalic,
			fonts.SansBold:   fc.SansBold,
		},
		SerifFallback: fc.SerifFallback,
		CacheDir:      a.paths.FontCache(),
		Logger:        a.log,
	})
	if err != nil {
		return nil, err
	}
	for _, fam := range fonts.Families {
		a.log.Debug("font resolved", "family", fam, "origin", reg.Origin(fam))
	}
	return reg, nil
}

func (a *app) renderer(ctx context.Context) (*compositor.Renderer, error) {
	reg, err := a.fonts(ctx)
	if err != nil {
		return nil, err
	}
	return compositor.NewRenderer(reg, a.loader(), a.log), nil
}

func (a *app) openStore() (*store.Store, error) {
	return store.Open(store.Options{
		Path:       a.paths.Resolve(a.cfg.Store.Database),
		UploadsDir: a.paths.Resolve(a.cfg.Store.UploadsDir),
		Logger:     a.log,
	})
}

func (a *app) contentClient() *content.Client {
	var cacheDir string
	if a.cfg.Content.Cache {
		cacheDir = a.paths.ContentCache()
	}
	return content.NewClient(content.ClientOptions{
		Endpoint: a.cfg.Content.Endpoint,
		CacheDir: cacheDir,
		Timeout:  time.Duration(a.cfg.Content.TimeoutSeconds) * time.Second,
		RetryMax: a.cfg.Assets.RetryMax,
		Logger:   a.log,
	})
}

// ///////////////////////////////////////////////
// Argument Helpers
// ///////////////////////////////////////////////

// readContent decodes a content envelope from path, or stdin for "-".
func (a *app) readContent(path string) (content.Variant, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "":
		return nil, usageError("-content is required")
	case "-":
		data, err = io.ReadAll(a.stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return content.Decode(data)
}

// background resolves a -bg value: a built-in id, an upload id, or any
// locator the asset loader accepts. Empty means none selected.
func (a *app) background(ctx context.Context, ref, kind string) (*assets.Background, error) {
	if ref == "" {
		return nil, nil
	}
	if lib, ok := library.Lookup(ref); ok {
		bg := lib.Asset()
		return &bg, nil
	}
	if id, err := uuid.Parse(ref); err == nil {
		st, err := a.openStore()
		if err != nil {
			return nil, err
		}
		defer st.Close()
		u, err := st.GetUpload(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", id, err)
		}
		return &assets.Background{Locator: st.FilePath(u), Kind: u.Type}, nil
	}

	bg := &assets.Background{Locator: ref, Kind: assets.KindFromLocator(ref)}
	if kind != "" {
		k, err := assets.ParseKind(kind)
		if err != nil {
			return nil, usageError("%v", err)
		}
		bg.Kind = k
	}
	return bg, nil
}

// logoURL returns a URL a browser can load for the configured logo. The
// built-in mark is inlined as a data: URL.
func (a *app) logoURL(reg *fonts.Registry) string {
	switch logo := a.cfg.Assets.Logo; logo {
	case "":
		return ""
	case paths.LogoBuiltin:
		img, err := compositor.BuiltinMark(reg)
		if err != nil {
			a.log.Warn("builtin logo unavailable", "error", err)
			return ""
		}
		var buf bytes.Buffer
		if err := export.Encode(&buf, img); err != nil {
			a.log.Warn("builtin logo unavailable", "error", err)
			return ""
		}
		return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	default:
		return logo
	}
}

// exportPath places name under out. An empty out means dir; an out naming
// an existing directory or ending in a separator receives name inside it.
func exportPath(out, dir, name string) string {
	if out == "" {
		return filepath.Join(dir, name)
	}
	if strings.HasSuffix(out, "/") || strings.HasSuffix(out, string(filepath.Separator)) {
		return filepath.Join(out, name)
	}
	if fi, err := os.Stat(out); err == nil && fi.IsDir() {
		return filepath.Join(out, name)
	}
	return out
}

// parseTime accepts RFC 3339 or a local "2006-01-02 15:04".
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, usageError("invalid time %q: use RFC 3339 or YYYY-MM-DD HH:MM", s)
}

// splitID separates a leading positional id from the flags after it, so
// both "update ID -title x" and "update -title x ID" work.
func splitID(args []string) (id string, rest []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, usageError("invalid id %q", s)
	}
	return id, nil
}

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }

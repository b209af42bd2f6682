// google.go downloads font files from the Google Fonts CSS API.
//
// Font specs use the format "google:FAMILY:WEIGHT" (e.g.
// "google:Noto Naskh Arabic:400"). Downloaded fonts are cached in SFNT form
// so they are fetched at most once per data directory.

package fonts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	tdfont "github.com/tdewolff/font"
	"tools.zach/dev/wisdomcard/internal/atomicfile"
)

// cssEndpoint is the Google Fonts CSS API base URL. Tests point it at a
// local server.
var cssEndpoint = "https://fonts.googleapis.com/css2"

// fontURLRe extracts the font file URL from the CSS response.
var fontURLRe = regexp.MustCompile(`url\((https?://[^)]+)\)`)

// modernUA makes Google return WOFF2 URLs, which tdewolff/font converts.
const modernUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// ParseGoogleFontSpec parses a "google:Family:Weight" spec into its parts.
func ParseGoogleFontSpec(spec string) (family, weight string, ok bool) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] != "google" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// CacheFileName returns the on-disk name for a cached Google font.
func CacheFileName(family, weight string) string {
	return strings.ReplaceAll(family, " ", "") + "-" + weight + ".ttf"
}

// FetchGoogleFont returns SFNT bytes for spec, reading the cache in
// cacheDir first and populating it after a download. A nil client uses a
// default retrying client.
func FetchGoogleFont(ctx context.Context, client *retryablehttp.Client, spec, cacheDir string) ([]byte, error) {
	family, weight, ok := ParseGoogleFontSpec(spec)
	if !ok {
		return nil, fmt.Errorf("invalid google font spec %q: expected google:FAMILY:WEIGHT", spec)
	}

	var cacheFile string
	if cacheDir != "" {
		cacheFile = filepath.Join(cacheDir, CacheFileName(family, weight))
		if data, err := os.ReadFile(cacheFile); err == nil {
			return data, nil
		}
	}

	if client == nil {
		client = retryablehttp.NewClient()
		client.RetryMax = 2
		client.HTTPClient.Timeout = 15 * time.Second
		client.Logger = nil
	}

	cssURL := fmt.Sprintf("%s?family=%s:wght@%s", cssEndpoint, url.QueryEscape(family), weight)
	css, err := get(ctx, client, cssURL, 1<<20)
	if err != nil {
		return nil, fmt.Errorf("fetch Google Fonts CSS for %s wght@%s: %w", family, weight, err)
	}

	m := fontURLRe.FindSubmatch(css)
	if m == nil {
		return nil, fmt.Errorf("no font URL in Google Fonts CSS for %s wght@%s", family, weight)
	}
	fontURL := string(m[1])

	data, err := get(ctx, client, fontURL, 10<<20)
	if err != nil {
		return nil, fmt.Errorf("download font file: %w", err)
	}
	if isWOFF2Name(fontURL) || isWebFont(data) {
		if data, err = tdfont.ToSFNT(data); err != nil {
			return nil, fmt.Errorf("convert WOFF2 to SFNT: %w", err)
		}
	}

	if cacheFile != "" {
		if err := writeCache(cacheDir, cacheFile, data); err != nil {
			slog.Warn("failed to cache font", "file", cacheFile, "error", err)
		}
	}
	return data, nil
}

func writeCache(dir, path string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create font cache dir: %w", err)
	}
	return atomicfile.Write(path, data, 0o644)
}

func get(ctx context.Context, client *retryablehttp.Client, rawURL string, limit int64) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", modernUA)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errors.New("response exceeds size limit")
	}
	return data, nil
}

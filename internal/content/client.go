package content

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/wisdomcard/internal/atomicfile"
)

// maxResponseBytes caps a generation response body.
const maxResponseBytes = 4 << 20

// ///////////////////////////////////////////////
// Views
// ///////////////////////////////////////////////

// View selects which lists the generation endpoint returns.
type View string

const (
	ViewHome    View = "home"
	ViewQuran   View = "quran"
	ViewHadith  View = "hadith"
	ViewStories View = "stories"
)

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewHome, ViewQuran, ViewHadith, ViewStories:
		return v, nil
	default:
		return "", fmt.Errorf("unknown view %q: must be home, quran, hadith, or stories", s)
	}
}

// required lists the response keys the endpoint must return for v.
func (v View) required() []string {
	switch v {
	case ViewHome:
		return []string{"quran", "hadith"}
	case ViewQuran:
		return []string{"quran"}
	case ViewHadith:
		return []string{"hadith"}
	case ViewStories:
		return []string{"stories"}
	}
	return nil
}

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

// ErrNoEndpoint is returned by a Client with no endpoint configured.
var ErrNoEndpoint = errors.New("content endpoint not configured")

// NetworkError reports that the endpoint could not be reached.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch content from %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// InvalidResponseError reports a reply that was not a usable response,
// either a non-2xx status or a body that did not match the expected shape.
type InvalidResponseError struct {
	Status  int
	Message string
	Err     error
}

func (e *InvalidResponseError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("invalid content response (status %d): %s", e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("invalid content response (status %d): %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("invalid content response (status %d)", e.Status)
	}
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// ClientOptions configures [NewClient].
type ClientOptions struct {
	// Endpoint receives POST {topic, view}.
	Endpoint string
	// CacheDir holds the last good response per topic and view. Empty
	// disables caching.
	CacheDir string
	Timeout  time.Duration
	RetryMax int
	Logger   *slog.Logger
}

// Client fetches generated content. A NetworkError falls back to the cached
// response for the same topic and view when one exists.
type Client struct {
	endpoint string
	cacheDir string
	http     *retryablehttp.Client
	log      *slog.Logger
}

// NewClient creates a Client.
func NewClient(opts ClientOptions) *Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = opts.RetryMax
	hc.Logger = nil
	if opts.Timeout > 0 {
		hc.HTTPClient.Timeout = opts.Timeout
	}
	// Return 4xx/5xx responses to us so their {error} body can be reported.
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{endpoint: opts.Endpoint, cacheDir: opts.CacheDir, http: hc, log: log}
}

type fetchRequest struct {
	Topic string `json:"topic"`
	View  View   `json:"view"`
}

// Fetch asks the endpoint for content about topic, shaped for view.
func (c *Client) Fetch(ctx context.Context, topic string, view View) (*Collection, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("fetch content: empty topic")
	}
	if _, err := ParseView(string(view)); err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	if c.endpoint == "" {
		return nil, ErrNoEndpoint
	}

	resp, err := c.fetch(ctx, topic, view)
	if err == nil {
		coll, cerr := resp.Collect(view)
		if cerr != nil {
			return nil, &InvalidResponseError{Status: http.StatusOK, Err: cerr}
		}
		if werr := c.writeCache(topic, view, resp); werr != nil {
			c.log.Warn("failed to write content cache", "topic", topic, "view", view, "error", werr)
		}
		return coll, nil
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) || ctx.Err() != nil {
		return nil, err
	}
	cached, cerr := c.readCache(topic, view)
	if cerr != nil {
		c.log.Debug("no cached content", "topic", topic, "view", view, "error", cerr)
		return nil, err
	}
	c.log.Warn("content endpoint unreachable, using cached response", "topic", topic, "view", view, "error", err)
	return cached.Collect(view)
}

func (c *Client) fetch(ctx context.Context, topic string, view View) (*Response, error) {
	body, err := json.Marshal(fetchRequest{Topic: topic, View: view})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: c.endpoint, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &NetworkError{Endpoint: c.endpoint, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(raw) > maxResponseBytes {
		return nil, &InvalidResponseError{Status: res.StatusCode, Message: fmt.Sprintf("body exceeds %d bytes", maxResponseBytes)}
	}

	var out Response
	decodeErr := json.Unmarshal(raw, &out)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := out.Error
		if decodeErr != nil || msg == "" {
			msg = fmt.Sprintf("request failed with status %d", res.StatusCode)
		}
		return nil, &InvalidResponseError{Status: res.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, &InvalidResponseError{Status: res.StatusCode, Err: decodeErr}
	}
	if out.Error != "" {
		return nil, &InvalidResponseError{Status: res.StatusCode, Message: out.Error}
	}
	return &out, nil
}

// ///////////////////////////////////////////////
// Cache
// ///////////////////////////////////////////////

func (c *Client) cachePath(topic string, view View) string {
	sum := sha256.Sum256([]byte(strings.ToLower(topic) + "\x00" + string(view)))
	return filepath.Join(c.cacheDir, string(view)+"-"+hex.EncodeToString(sum[:8])+".json")
}

func (c *Client) writeCache(topic string, view View, resp *Response) error {
	if c.cacheDir == "" {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal content cache: %w", err)
	}
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create content cache dir: %w", err)
	}
	return atomicfile.Write(c.cachePath(topic, view), data, 0o644)
}

func (c *Client) readCache(topic string, view View) (*Response, error) {
	if c.cacheDir == "" {
		return nil, errors.New("content cache disabled")
	}
	data, err := os.ReadFile(c.cachePath(topic, view))
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(data), &resp); err != nil {
		return nil, fmt.Errorf("parse content cache: %w", err)
	}
	return &resp, nil
}

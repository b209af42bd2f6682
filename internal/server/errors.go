package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tools.zach/dev/wisdomcard/internal/compositor"
	"tools.zach/dev/wisdomcard/internal/content"
	"tools.zach/dev/wisdomcard/internal/export"
	"tools.zach/dev/wisdomcard/internal/store"
)

// APIError is the body of every error response.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError as {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// badRequest marks client input errors.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

// classify maps an error to a status and code.
func classify(err error) (int, string) {
	var (
		assetErr   *compositor.AssetLoadError
		encodeErr  *export.EncodingError
		netErr     *content.NetworkError
		invalidErr *content.InvalidResponseError
		badReq     badRequest
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, compositor.ErrNoBackgroundSelected):
		return http.StatusBadRequest, "no_background_selected"
	case errors.Is(err, compositor.ErrExportInProgress):
		return http.StatusConflict, "export_in_progress"
	case errors.Is(err, compositor.ErrSessionClosed):
		return http.StatusServiceUnavailable, "session_closed"
	case errors.As(err, &assetErr):
		return http.StatusBadGateway, "asset_load_failed"
	case errors.As(err, &encodeErr):
		return http.StatusInternalServerError, "encoding_failed"
	case errors.Is(err, content.ErrNoEndpoint):
		return http.StatusServiceUnavailable, "content_unconfigured"
	case errors.As(err, &netErr):
		return http.StatusBadGateway, "content_unreachable"
	case errors.As(err, &invalidErr):
		return http.StatusBadGateway, "content_invalid"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.Request.URL.Path, "code", code, "error", err)
	} else {
		s.log.Warn("request rejected", "path", c.Request.URL.Path, "code", code, "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: err.Error(), Code: code}})
}

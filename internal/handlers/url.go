package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/cache"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// Shortener is the write side used by the URL handlers.
type Shortener interface {
	Shorten(ctx context.Context, owner shortener.OwnerID, longURL string) (*shortener.Result, error)
	Get(ctx context.Context, owner shortener.OwnerID, code shortener.Code) (*shortener.Mapping, error)
	List(ctx context.Context, owner shortener.OwnerID) ([]shortener.Mapping, error)
	Update(ctx context.Context, owner shortener.OwnerID, code shortener.Code, longURL string) (*shortener.Mapping, error)
	Delete(ctx context.Context, owner shortener.OwnerID, code shortener.Code) error
}

// Resolver resolves codes for redirects.
type Resolver interface {
	Lookup(ctx context.Context, code shortener.Code) (*cache.Resolution, error)
}

// URLHandler handles URL shortening operations.
type URLHandler struct {
	service  Shortener
	resolver Resolver
	baseURL  string
	logger   *zap.Logger
}

// NewURLHandler creates a new URL handler.
func NewURLHandler(service Shortener, resolver Resolver, baseURL string, logger *zap.Logger) *URLHandler {
	return &URLHandler{
		service:  service,
		resolver: resolver,
		baseURL:  baseURL,
		logger:   logger,
	}
}

func (h *URLHandler) CreateShortURL(ctx context.Context, req *ShortenRequest) (*ShortenResponse, error) {
	result, err := h.service.Shorten(ctx, OwnerFromContext(ctx), req.Body.URL)
	if err != nil {
		return nil, h.toHTTPError(err, "failed to shorten url")
	}

	resp := &ShortenResponse{Status: http.StatusCreated}
	if result.Status == shortener.StatusAlreadyExists {
		resp.Status = http.StatusOK
	}

	resp.Body = h.body(result.Code, result.LongURL, result.ClickCount)
	resp.Body.ExpiresAt = result.ExpiresAt
	resp.Body.Status = string(result.Status)
	resp.Headers.Location = resp.Body.ShortURL

	return resp, nil
}

func (h *URLHandler) RedirectToURL(ctx context.Context, req *CodeRequest) (*RedirectResponse, error) {
	res, err := h.resolver.Lookup(ctx, shortener.Code(req.Code))
	if err != nil {
		return nil, h.toHTTPError(err, "failed to resolve url")
	}

	// Temporary redirect, every resolution has to reach us to be counted.
	resp := &RedirectResponse{
		Status: http.StatusFound,
	}
	resp.Headers.Location = res.LongURL
	resp.Headers.CacheControl = "no-store"

	return resp, nil
}

func (h *URLHandler) GetURL(ctx context.Context, req *CodeRequest) (*URLResponse, error) {
	m, err := h.service.Get(ctx, OwnerFromContext(ctx), shortener.Code(req.Code))
	if err != nil {
		return nil, h.toHTTPError(err, "failed to get url")
	}

	return &URLResponse{Body: h.mappingBody(m)}, nil
}

func (h *URLHandler) ListURLs(ctx context.Context, _ *struct{}) (*ListResponse, error) {
	mappings, err := h.service.List(ctx, OwnerFromContext(ctx))
	if err != nil {
		return nil, h.toHTTPError(err, "failed to list urls")
	}

	resp := &ListResponse{}
	resp.Body.URLs = make([]URLBody, 0, len(mappings))

	for i := range mappings {
		resp.Body.URLs = append(resp.Body.URLs, h.mappingBody(&mappings[i]))
	}

	return resp, nil
}

func (h *URLHandler) UpdateURL(ctx context.Context, req *UpdateRequest) (*URLResponse, error) {
	m, err := h.service.Update(ctx, OwnerFromContext(ctx), shortener.Code(req.Code), req.Body.URL)
	if err != nil {
		return nil, h.toHTTPError(err, "failed to update url")
	}

	return &URLResponse{Body: h.mappingBody(m)}, nil
}

func (h *URLHandler) DeleteURL(ctx context.Context, req *CodeRequest) (*struct{}, error) {
	if err := h.service.Delete(ctx, OwnerFromContext(ctx), shortener.Code(req.Code)); err != nil {
		return nil, h.toHTTPError(err, "failed to delete url")
	}

	return nil, nil
}

func (h *URLHandler) body(code shortener.Code, longURL string, clicks int64) URLBody {
	return URLBody{
		Code:       string(code),
		ShortURL:   fmt.Sprintf("%s/%s", h.baseURL, code),
		LongURL:    longURL,
		ClickCount: clicks,
	}
}

func (h *URLHandler) mappingBody(m *shortener.Mapping) URLBody {
	b := h.body(m.Code, m.LongURL, m.ClickCount)
	b.ExpiresAt = m.ExpiresAt

	return b
}

// toHTTPError maps service errors to responses. Unexpected errors are logged and hidden.
func (h *URLHandler) toHTTPError(err error, msg string) error {
	switch {
	case errors.Is(err, shortener.ErrUnauthenticated):
		return huma.Error401Unauthorized("missing or unknown owner")
	case errors.Is(err, shortener.ErrInvalidURL):
		return huma.Error400BadRequest("invalid url: must be an absolute http or https url")
	case errors.Is(err, shortener.ErrValidation):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, shortener.ErrNotFound):
		return huma.Error404NotFound("short url not found")
	case errors.Is(err, shortener.ErrUnavailable):
		h.logger.Warn(msg, zap.Error(err))

		return huma.Error503ServiceUnavailable("service temporarily unavailable")
	default:
		h.logger.Error(msg, zap.Error(err))

		return huma.Error500InternalServerError(msg)
	}
}

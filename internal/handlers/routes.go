package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/ratelimit"
)

func scoped(scope ratelimit.Scope) map[string]any {
	return map[string]any{ratelimit.MetadataKey: scope}
}

// RegisterRoutes registers the URL shortener routes with their rate limit scopes.
func RegisterRoutes(api huma.API, h *URLHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "shorten-url",
		Method:        http.MethodPost,
		Path:          "/api/urls/shorten",
		Summary:       "Create short URL",
		Description:   "Issues a code for the URL. Submitting a URL the owner already shortened returns the existing code.",
		Tags:          []string{"URLs"},
		DefaultStatus: http.StatusCreated,
		Metadata:      scoped(ratelimit.ScopeShorten),
	}, h.CreateShortURL)

	huma.Register(api, huma.Operation{
		OperationID: "list-urls",
		Method:      http.MethodGet,
		Path:        "/api/urls",
		Summary:     "List owned URLs",
		Tags:        []string{"URLs"},
		Metadata:    scoped(ratelimit.ScopeManage),
	}, h.ListURLs)

	huma.Register(api, huma.Operation{
		OperationID: "get-url",
		Method:      http.MethodGet,
		Path:        "/api/urls/{code}",
		Summary:     "Get URL details",
		Tags:        []string{"URLs"},
		Metadata:    scoped(ratelimit.ScopeManage),
	}, h.GetURL)

	huma.Register(api, huma.Operation{
		OperationID: "update-url",
		Method:      http.MethodPut,
		Path:        "/api/urls/{code}",
		Summary:     "Change the URL a code points to",
		Tags:        []string{"URLs"},
		Metadata:    scoped(ratelimit.ScopeManage),
	}, h.UpdateURL)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-url",
		Method:        http.MethodDelete,
		Path:          "/api/urls/{code}",
		Summary:       "Delete URL",
		Tags:          []string{"URLs"},
		DefaultStatus: http.StatusNoContent,
		Metadata:      scoped(ratelimit.ScopeManage),
	}, h.DeleteURL)

	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Redirect to original URL",
		Description: "Redirects to the original URL associated with the short code.",
		Tags:        []string{"URLs"},
		Metadata:    scoped(ratelimit.ScopeRedirect),
	}, h.RedirectToURL)
}

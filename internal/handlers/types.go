package handlers

import "time"

// ShortenRequest is the request body for creating a short URL.
type ShortenRequest struct {
	Body struct {
		URL string `doc:"The URL to shorten" example:"https://example.com/very/long/path" json:"url" maxLength:"2048"`
	}
}

// URLBody describes a mapping in responses.
type URLBody struct {
	Code       string     `doc:"The short code"                               example:"0000aZ3"                        json:"code"`
	ShortURL   string     `doc:"The full short URL"                           example:"http://localhost:8888/0000aZ3"  json:"shortUrl"`
	LongURL    string     `doc:"The original URL"                             example:"https://example.com/long/path" json:"longUrl"`
	ClickCount int64      `doc:"Number of resolutions"                        json:"clickCount"`
	ExpiresAt  *time.Time `doc:"When the mapping stops resolving, if ever"    json:"expiresAt,omitempty"`
	Status     string     `doc:"Outcome of the request, set on shorten only" enum:"created,already-exists,persistence-pending-failed" json:"status,omitempty"`
}

// ShortenResponse is the response for a shorten request.
type ShortenResponse struct {
	Status  int
	Headers struct {
		Location string `doc:"The short URL location" header:"Location"`
	}
	Body URLBody
}

// CodeRequest addresses a single mapping.
type CodeRequest struct {
	Code string `doc:"The short code" example:"0000aZ3" maxLength:"32" path:"code"`
}

// RedirectResponse redirects to the original URL.
type RedirectResponse struct {
	Status  int
	Headers struct {
		Location     string `doc:"The original URL" header:"Location"`
		CacheControl string `header:"Cache-Control"`
	}
}

// URLResponse returns a single mapping.
type URLResponse struct {
	Body URLBody
}

// ListResponse returns the owner's mappings, newest first.
type ListResponse struct {
	Body struct {
		URLs []URLBody `json:"urls"`
	}
}

// UpdateRequest points an existing code at a new URL.
type UpdateRequest struct {
	Code string `doc:"The short code" example:"0000aZ3" maxLength:"32" path:"code"`
	Body struct {
		URL string `doc:"The new URL" example:"https://example.com/new/path" json:"url" maxLength:"2048"`
	}
}

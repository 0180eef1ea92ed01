package server

import "github.com/raysh454/darkscan/internal/model"

// CreateSessionRequest opens a detection session for a page.
type CreateSessionRequest struct {
	URL     string `json:"url" example:"https://shop.example/checkout"`
	Backend string `json:"backend,omitempty" example:"chromedp"`
}

// ScanResponse answers a perform-scan request.
type ScanResponse struct {
	Success  bool            `json:"success" example:"true"`
	Count    int             `json:"count" example:"3"`
	Patterns []model.Pattern `json:"patterns"`
	Skipped  bool            `json:"skipped,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// BadgeResponse carries the monitoring badge counter.
type BadgeResponse struct {
	Count int `json:"count" example:"2"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"session not found"`
}

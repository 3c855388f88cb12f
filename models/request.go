package models

// Action is one step of a scripted browser interaction, executed in order
// against the page before the result is captured.
type Action struct {
	// Type is one of "wait", "click", "scroll", "execute_js".
	Type string `json:"type" binding:"required"`

	// Selector is the CSS selector for "click", or the element "wait"
	// blocks on when set.
	Selector string `json:"selector,omitempty"`

	// Milliseconds is the sleep duration for a selector-less "wait".
	Milliseconds int `json:"milliseconds,omitempty"`

	// Direction is "up" or "down" for "scroll" (default "down").
	Direction string `json:"direction,omitempty"`

	// Amount is the number of viewports to scroll (default 1).
	Amount int `json:"amount,omitempty"`

	// Code is the JavaScript source for "execute_js".
	Code string `json:"code,omitempty"`
}

// Cookie is a cookie to install on the page before navigation.
type Cookie struct {
	Name   string `json:"name" binding:"required"`
	Value  string `json:"value" binding:"required"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	URL      string            `json:"url" binding:"required"`
	Stealth  bool              `json:"stealth,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Cookies  []Cookie          `json:"cookies,omitempty"`
	Actions  []Action          `json:"actions,omitempty"`
	TimeoutS int               `json:"timeout,omitempty"` // seconds, capped by config
}

// CaptureRequest is the payload for POST /api/v1/screenshot and /api/v1/pdf.
type CaptureRequest struct {
	URL      string   `json:"url" binding:"required"`
	Stealth  bool     `json:"stealth,omitempty"`
	FullPage bool     `json:"full_page,omitempty"` // screenshot only
	Actions  []Action `json:"actions,omitempty"`
	TimeoutS int      `json:"timeout,omitempty"`
}

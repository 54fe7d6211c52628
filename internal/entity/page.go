package entity

import "time"

// Page is a rendered document handle returned by a page fetcher.
// HTML is a snapshot; fetchers refresh it after the live DOM changes.
type Page struct {
	ID         string
	URL        string
	HTML       string
	RenderedAt time.Time
}

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// ListingView is the read model handed to consumers.
type ListingView struct {
	ID          int64           `json:"id"`
	UID         string          `json:"uid"`
	ExternalID  int64           `json:"listing_id"`
	Status      string          `json:"listing_status"`
	Details     json.RawMessage `json:"listing_details"`
	PublishedAt *time.Time      `json:"publish_date,omitempty"`
	SoldAt      *time.Time      `json:"sold_date,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// View builds the read model of r.
func (r *ListingRecord) View() ListingView {
	return ListingView{
		ID:          r.ID,
		UID:         r.UID,
		ExternalID:  r.ExternalID,
		Status:      r.Status,
		Details:     json.RawMessage(r.Details),
		PublishedAt: r.PublishedAt,
		SoldAt:      r.SoldAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

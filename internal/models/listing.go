// Package models defines the listing types shared by the REX client, the
// storage layer and the services.
package models

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Listing statuses used by the recent-listings queries. Upstream may send
// other values; Status is stored as given.
const (
	StatusCurrent = "current"
	StatusSold    = "sold"
)

// ErrInvalidRow is returned when an upstream row cannot be mapped to a Listing.
var ErrInvalidRow = errors.New("invalid listing row")

// Listing is one listing as received from REX, before or after it is stored.
type Listing struct {
	// ID is the internal record id, zero until the listing is stored.
	ID int64 `json:"id,omitempty"`

	// ExternalID is the REX listing id and the upsert key.
	ExternalID int64 `json:"listing_id"`

	Status string `json:"listing_status"`

	// Details is the full upstream row, kept verbatim.
	Details json.RawMessage `json:"listing_details"`

	PublishedAt *time.Time `json:"publish_date,omitempty"`
	SoldAt      *time.Time `json:"sold_date,omitempty"`

	// Errors holds field validation errors filled in by a save attempt.
	Errors map[string][]string `json:"errors,omitempty"`
}

// HasErrors reports whether the last save attempt rejected the listing.
func (l *Listing) HasErrors() bool {
	return len(l.Errors) > 0
}

// ListingFromRow maps one row of a REX search/read result to a Listing.
func ListingFromRow(raw json.RawMessage) (*Listing, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: empty row", ErrInvalidRow)
	}

	id, ok := toInt64(row["id"])
	if !ok {
		return nil, fmt.Errorf("%w: missing or malformed id", ErrInvalidRow)
	}

	l := &Listing{
		ExternalID: id,
		Details:    append(json.RawMessage(nil), raw...),
	}
	if s, ok := row["system_listing_state"].(string); ok {
		l.Status = s
	}
	l.PublishedAt = toTime(row["system_publication_time"])
	l.SoldAt = toTime(row["state_date_sold"])
	if l.SoldAt == nil {
		l.SoldAt = toTime(row["system_sold_date"])
	}
	return l, nil
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	case float64:
		return int64(t), true
	}
	return 0, false
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toTime accepts epoch seconds (number or numeric string) and the date
// formats REX uses. Zero and unparsable values yield nil.
func toTime(v any) *time.Time {
	if n, ok := toInt64(v); ok {
		if n <= 0 {
			return nil
		}
		t := time.Unix(n, 0).UTC()
		return &t
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingFromRow(t *testing.T) {
	tests := []struct {
		name      string
		row       string
		wantID    int64
		status    string
		published *time.Time
		sold      *time.Time
	}{
		{
			name:      "numeric id and epoch publication time",
			row:       `{"id": 1001, "system_listing_state": "current", "system_publication_time": 1700000000}`,
			wantID:    1001,
			status:    "current",
			published: ptrTime(time.Unix(1700000000, 0).UTC()),
		},
		{
			name:   "string id and sold date",
			row:    `{"id": "77", "system_listing_state": "sold", "state_date_sold": "2024-03-05"}`,
			wantID: 77,
			status: "sold",
			sold:   ptrTime(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:   "fallback sold date and zero date ignored",
			row:    `{"id": 5, "system_listing_state": "sold", "state_date_sold": "0000-00-00", "system_sold_date": "2023-01-02 10:11:12"}`,
			wantID: 5,
			status: "sold",
			sold:   ptrTime(time.Date(2023, 1, 2, 10, 11, 12, 0, time.UTC)),
		},
		{
			name:   "missing state",
			row:    `{"id": 9}`,
			wantID: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := ListingFromRow(json.RawMessage(tt.row))
			require.NoError(t, err)

			assert.Equal(t, tt.wantID, l.ExternalID)
			assert.Equal(t, tt.status, l.Status)
			assert.Equal(t, tt.published, l.PublishedAt)
			assert.Equal(t, tt.sold, l.SoldAt)
			assert.JSONEq(t, tt.row, string(l.Details))
			assert.Zero(t, l.ID)
		})
	}
}

func TestListingFromRow_Invalid(t *testing.T) {
	for _, row := range []string{`not json`, `null`, `{"system_listing_state": "current"}`, `{"id": "abc"}`} {
		_, err := ListingFromRow(json.RawMessage(row))
		require.ErrorIs(t, err, ErrInvalidRow, row)
	}
}

func TestListingRecord_Validate(t *testing.T) {
	r := NewListingRecord()
	require.NotEmpty(t, r.UID)
	require.True(t, r.IsNew())

	errs := r.Validate()
	assert.Contains(t, errs, "listing_id")
	assert.Contains(t, errs, "listing_status")
	assert.Contains(t, errs, "listing_details")

	r.Apply(&Listing{ExternalID: 1, Status: strings.Repeat("x", 101), Details: json.RawMessage(`{broken`)})
	errs = r.Validate()
	assert.NotContains(t, errs, "listing_id")
	assert.Equal(t, []string{"must be at most 100 characters"}, errs["listing_status"])
	assert.Equal(t, []string{"must be valid JSON"}, errs["listing_details"])

	r.Apply(&Listing{ExternalID: 1, Status: "current", Details: json.RawMessage(`{"id":1}`)})
	assert.Nil(t, r.Validate())
}

func TestListingRecord_RoundTrip(t *testing.T) {
	pub := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := &Listing{ExternalID: 3, Status: "current", Details: json.RawMessage(`{"id":3}`), PublishedAt: &pub}

	r := NewListingRecord()
	r.ID = 10
	r.Apply(in)

	out := r.Listing()
	assert.Equal(t, int64(10), out.ID)
	assert.Equal(t, in.ExternalID, out.ExternalID)
	assert.Equal(t, &pub, out.PublishedAt)

	v := r.View()
	assert.Equal(t, r.UID, v.UID)
	assert.JSONEq(t, `{"id":3}`, string(v.Details))
}

func ptrTime(t time.Time) *time.Time { return &t }

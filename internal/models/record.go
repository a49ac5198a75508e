package models

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ListingRecord is a row of the listings table.
type ListingRecord struct {
	ID          int64      `db:"id"`
	UID         string     `db:"uid"`
	ExternalID  int64      `db:"listing_id" validate:"gt=0"`
	Status      string     `db:"listing_status" validate:"required,max=100"`
	Details     string     `db:"listing_details" validate:"required,json"`
	PublishedAt *time.Time `db:"publish_date"`
	SoldAt      *time.Time `db:"sold_date"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// NewListingRecord returns a blank record with a fresh uid.
func NewListingRecord() *ListingRecord {
	return &ListingRecord{UID: uuid.NewString()}
}

// IsNew reports whether the record has not been inserted yet.
func (r *ListingRecord) IsNew() bool {
	return r.ID == 0
}

// Apply copies the listing fields onto the record.
func (r *ListingRecord) Apply(l *Listing) {
	r.ExternalID = l.ExternalID
	r.Status = l.Status
	r.Details = string(l.Details)
	r.PublishedAt = l.PublishedAt
	r.SoldAt = l.SoldAt
}

// Listing converts the record back to a transfer Listing.
func (r *ListingRecord) Listing() *Listing {
	return &Listing{
		ID:          r.ID,
		ExternalID:  r.ExternalID,
		Status:      r.Status,
		Details:     []byte(r.Details),
		PublishedAt: r.PublishedAt,
		SoldAt:      r.SoldAt,
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("db"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks the record and returns the failures keyed by column name.
// A valid record yields nil.
func (r *ListingRecord) Validate() map[string][]string {
	err := recordValidator().Struct(r)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string][]string{"record": {err.Error()}}
	}

	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "cannot be blank"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "json":
		return "must be valid JSON"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

package services

import (
	"context"

	"github.com/dmitrijs2005/rexsync/internal/models"
)

// SaveEvent describes a listing being saved. IsNew is true when the
// listing had no internal id before the save.
type SaveEvent struct {
	Listing *models.Listing
	IsNew   bool
}

// SaveListener observes listing saves. BeforeSave runs after validation
// and before anything is written; returning true cancels the save.
// AfterSave runs once the write has been committed or joined.
type SaveListener interface {
	BeforeSave(ctx context.Context, e SaveEvent) (cancel bool)
	AfterSave(ctx context.Context, e SaveEvent)
}

// ListenerFuncs adapts plain functions to SaveListener. Nil fields are skipped.
type ListenerFuncs struct {
	Before func(ctx context.Context, e SaveEvent) bool
	After  func(ctx context.Context, e SaveEvent)
}

func (f ListenerFuncs) BeforeSave(ctx context.Context, e SaveEvent) bool {
	if f.Before == nil {
		return false
	}
	return f.Before(ctx, e)
}

func (f ListenerFuncs) AfterSave(ctx context.Context, e SaveEvent) {
	if f.After != nil {
		f.After(ctx, e)
	}
}

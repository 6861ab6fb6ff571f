// Package geocode resolves place names to coordinates and country codes.
// Lookups are best effort: callers treat every failure as an unresolved
// location.
package geocode

import (
	"context"
	"errors"

	"github.com/jinxlover/material-news/internal/model"
)

var (
	// ErrNotFound means the backend has no answer for the name. It is a
	// stable result and may be cached.
	ErrNotFound = errors.New("geocode: not found")
	// ErrUnavailable means the backend could not be asked. It is transient.
	ErrUnavailable = errors.New("geocode: unavailable")
)

// Geocoder resolves a place name. Implementations must be safe for
// concurrent use and return the same answer for the same name.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (model.LocationInfo, error)
}

// None never resolves anything.
type None struct{}

func (None) Geocode(context.Context, string) (model.LocationInfo, error) {
	return model.LocationInfo{}, ErrNotFound
}

// Chain asks each geocoder in turn and returns the first answer.
type Chain []Geocoder

func (c Chain) Geocode(ctx context.Context, name string) (model.LocationInfo, error) {
	var transient error
	for _, g := range c {
		info, err := g.Geocode(ctx, name)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, ErrNotFound) {
			transient = err
		}
		if ctx.Err() != nil {
			return model.LocationInfo{}, ctx.Err()
		}
	}
	if transient != nil {
		return model.LocationInfo{}, transient
	}
	return model.LocationInfo{}, ErrNotFound
}

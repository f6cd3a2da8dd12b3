// Package location turns a best-effort device position lookup into the
// string recorded with each expense.
package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"spendtracker/internal/core"
)

// ErrUnavailable means the device did not provide a position.
var ErrUnavailable = errors.New("location unavailable")

type Coordinates struct {
	Lat float64
	Lon float64
}

// Resolver performs one position lookup.
type Resolver interface {
	Resolve(ctx context.Context) (Coordinates, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (Coordinates, error)

func (f ResolverFunc) Resolve(ctx context.Context) (Coordinates, error) {
	return f(ctx)
}

// Unavailable is a Resolver that never finds a position.
var Unavailable Resolver = ResolverFunc(func(context.Context) (Coordinates, error) {
	return Coordinates{}, ErrUnavailable
})

// Static always returns c.
func Static(c Coordinates) Resolver {
	return ResolverFunc(func(context.Context) (Coordinates, error) { return c, nil })
}

func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("coordinates out of range: %v, %v", c.Lat, c.Lon)
	}
	return nil
}

// Lookup runs r once and collapses any failure to core.LocationUnavailable.
func Lookup(ctx context.Context, r Resolver) core.Location {
	if r == nil {
		return core.LocationUnavailable
	}
	c, err := r.Resolve(ctx)
	if err != nil {
		return core.LocationUnavailable
	}
	if err := c.Validate(); err != nil {
		return core.LocationUnavailable
	}
	return core.FormatLocation(c.Lat, c.Lon)
}

// FromStrings builds a Resolver from browser-supplied latitude and longitude
// form values. Blank or malformed input yields ErrUnavailable.
func FromStrings(lat, lon string) Resolver {
	return ResolverFunc(func(context.Context) (Coordinates, error) {
		lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
		if lat == "" || lon == "" {
			return Coordinates{}, ErrUnavailable
		}
		la, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return Coordinates{}, fmt.Errorf("%w: latitude %q", ErrUnavailable, lat)
		}
		lo, err := strconv.ParseFloat(lon, 64)
		if err != nil {
			return Coordinates{}, fmt.Errorf("%w: longitude %q", ErrUnavailable, lon)
		}
		return Coordinates{Lat: la, Lon: lo}, nil
	})
}

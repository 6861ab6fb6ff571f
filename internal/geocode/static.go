package geocode

import (
	"context"
	"strings"

	"github.com/jinxlover/material-news/internal/model"
	"github.com/jinxlover/material-news/internal/places"
)

// Place is a gazetteer entry supplied by configuration.
type Place struct {
	Name   string  `yaml:"name"`
	Lat    float64 `yaml:"lat"`
	Lon    float64 `yaml:"lon"`
	ISO2   string  `yaml:"iso2"`
	Admin1 string  `yaml:"admin1"`
}

// Static resolves names from configured places and the built-in country
// table. It never touches the network.
type Static struct {
	places map[string]Place
}

// NewStatic indexes places by normalized name.
func NewStatic(entries []Place) *Static {
	s := &Static{places: make(map[string]Place, len(entries))}
	for _, p := range entries {
		s.places[model.NormalizeName(p.Name)] = p
	}
	return s
}

// Geocode tries, in order: a configured place, a country name or alias,
// and finally the trailing ", Country" part of the name, which yields the
// country code only.
func (s *Static) Geocode(_ context.Context, name string) (model.LocationInfo, error) {
	if p, ok := s.places[model.NormalizeName(name)]; ok {
		return placeInfo(p), nil
	}
	if c, ok := places.Lookup(name); ok {
		// Aliases are often cities, so only the country itself gets coordinates.
		return countryInfo(c, strings.EqualFold(strings.TrimSpace(name), c.Name)), nil
	}
	if i := strings.LastIndex(name, ","); i >= 0 {
		head := strings.TrimSpace(name[:i])
		if p, ok := s.places[model.NormalizeName(head)]; ok {
			return placeInfo(p), nil
		}
		if c, ok := places.Lookup(name[i+1:]); ok {
			return countryInfo(c, false), nil
		}
	}
	return model.LocationInfo{}, ErrNotFound
}

func placeInfo(p Place) model.LocationInfo {
	info := model.LocationInfo{Lat: model.Float(p.Lat), Lon: model.Float(p.Lon)}
	if p.ISO2 != "" {
		info.ISO2 = model.String(strings.ToUpper(p.ISO2))
	}
	if p.Admin1 != "" {
		info.Admin1 = model.String(p.Admin1)
	}
	return info
}

func countryInfo(c places.Country, withCoords bool) model.LocationInfo {
	info := model.LocationInfo{ISO2: model.String(c.ISO2)}
	if withCoords {
		info.Lat, info.Lon = model.Float(c.Lat), model.Float(c.Lon)
	}
	return info
}

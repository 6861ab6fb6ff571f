package fetch

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jinxlover/material-news/internal/config"
	"github.com/jinxlover/material-news/internal/model"
)

// featureCollection is the USGS earthquake GeoJSON summary feed, e.g.
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/significant_week.geojson
type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag     *float64 `json:"mag"`
		Place   string   `json:"place"`
		Time    int64    `json:"time"` // unix ms
		URL     string   `json:"url"`
		Title   string   `json:"title"`
		Type    string   `json:"type"` // earthquake, quarry blast, ...
		Tsunami int      `json:"tsunami"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // lon, lat, depth
	} `json:"geometry"`
}

// isGeoJSON reports whether a response should be read as GeoJSON.
func isGeoJSON(url, contentType string) bool {
	return strings.HasSuffix(strings.ToLower(url), ".geojson") ||
		strings.Contains(contentType, "geo+json")
}

// parseGeoJSON turns earthquake features into RawItems. Other event types
// (quarry blasts, explosions recorded by seismometers) are skipped.
func parseGeoJSON(r io.Reader, src config.Source, retrieved time.Time) ([]model.RawItem, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	items := make([]model.RawItem, 0, len(fc.Features))
	for _, f := range fc.Features {
		p := f.Properties
		if p.Type != "earthquake" || p.Mag == nil {
			continue
		}
		place := quakePlace(p.Place)

		var b strings.Builder
		fmt.Fprintf(&b, "Magnitude %.1f earthquake", *p.Mag)
		if place != "" {
			fmt.Fprintf(&b, " near %s", place)
		}
		b.WriteString(".")
		if len(f.Geometry.Coordinates) >= 3 {
			fmt.Fprintf(&b, " Depth %.1f km.", f.Geometry.Coordinates[2])
		}
		if p.Tsunami == 1 {
			b.WriteString(" Tsunami warning issued.")
		}

		url := p.URL
		if url == "" {
			url = src.URL
		}
		item := model.RawItem{
			SourceName:  src.Name,
			URL:         url,
			Text:        b.String(),
			RetrievedAt: retrieved,
			Location:    place,
		}
		if p.Time > 0 {
			item.Published = time.UnixMilli(p.Time).UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

// quakePlace reduces "10 km SW of Lima, Peru" to "Lima, Peru".
func quakePlace(place string) string {
	if i := strings.LastIndex(place, " of "); i >= 0 {
		place = place[i+len(" of "):]
	}
	return strings.TrimSpace(place)
}

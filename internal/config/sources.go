package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Source kinds, named after their section in the sources file.
const (
	KindFeed   = "feeds"
	KindHazard = "hazards"
)

// Source is one named feed endpoint.
type Source struct {
	Name string
	URL  string
	Kind string
}

// LoadSources reads the feeds and hazards sections of a sources file, each
// a mapping of name to URL, in document order. A missing file or section
// yields no sources.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseSources(data)
}

// ParseSources parses sources file content.
func ParseSources(data []byte) ([]Source, error) {
	var doc struct {
		Feeds   yaml.Node `yaml:"feeds"`
		Hazards yaml.Node `yaml:"hazards"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: sources: %v", ErrInvalid, err)
	}
	feeds, err := section(&doc.Feeds, KindFeed)
	if err != nil {
		return nil, err
	}
	hazards, err := section(&doc.Hazards, KindHazard)
	if err != nil {
		return nil, err
	}
	return append(feeds, hazards...), nil
}

func section(n *yaml.Node, kind string) ([]Source, error) {
	if n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.Tag == "!!null") {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s must map names to URLs (line %d)", ErrInvalid, kind, n.Line)
	}
	var out []Source
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return nil, fmt.Errorf("%w: %s.%s must be a URL (line %d)", ErrInvalid, kind, key.Value, val.Line)
		}
		out = append(out, Source{Name: key.Value, URL: val.Value, Kind: kind})
	}
	return out, nil
}

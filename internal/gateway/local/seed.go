package local

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
)

// seedFile is the on-disk format of the local catalog seed.
type seedFile struct {
	Records []seedRecord `yaml:"records"`
}

type seedRecord struct {
	ID          string            `yaml:"id"`
	Title       string            `yaml:"title"`
	ContentType string            `yaml:"content_type"`
	ResourceURI string            `yaml:"resource_uri"`
	Derived     map[string]string `yaml:"derived"`
	Created     time.Time         `yaml:"created"`
	Modified    time.Time         `yaml:"modified"`
	Attributes  map[string]string `yaml:"attributes"`
}

func loadSeed(path, sourceID string) ([]metacard.Metacard, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from trusted config
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	cards := make([]metacard.Metacard, 0, len(f.Records))
	seen := make(map[string]struct{}, len(f.Records))
	for i, r := range f.Records {
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("duplicate seed record %q", r.ID)
		}
		seen[r.ID] = struct{}{}

		opts := []metacard.Option{
			metacard.WithSource(sourceID),
			metacard.WithTitle(r.Title),
			metacard.WithContentType(r.ContentType),
			metacard.WithResourceURI(r.ResourceURI),
			metacard.WithTimestamps(r.Created, r.Modified),
			metacard.WithAttributes(r.Attributes),
		}
		for q, uri := range r.Derived {
			opts = append(opts, metacard.WithDerivedResource(q, uri))
		}
		card, err := metacard.New(r.ID, opts...)
		if err != nil {
			return nil, fmt.Errorf("seed record %d: %w", i, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

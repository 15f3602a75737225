// Package local is the catalog this node owns: an in-memory record store that
// answers queries directly and serves products from a directory on disk.
package local

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/domain"
	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
	"github.com/kailas-cloud/fedcat/internal/domain/operation"
	"github.com/kailas-cloud/fedcat/internal/domain/plugin"
	"github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/result"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
)

const defaultMimeType = "application/octet-stream"

var _ source.Gateway = (*Catalog)(nil)

// Config holds local catalog settings.
type Config struct {
	ID      string
	Version string
	// SeedFile is an optional YAML file loaded at startup.
	SeedFile string
	// ResourceRoot confines file:// product URIs. Empty disables resource retrieval.
	ResourceRoot string
}

// Catalog keeps records in insertion order.
type Catalog struct {
	id        string
	version   string
	root      string
	seedFile  string
	preIngest []plugin.PreIngest
	logger    *zap.Logger

	reloadMu sync.Mutex

	mu    sync.RWMutex
	cards map[string]metacard.Metacard
	order []string
}

// New creates the catalog and applies the seed file, if any, as a create operation.
func New(ctx context.Context, cfg Config, logger *zap.Logger, preIngest ...plugin.PreIngest) (*Catalog, error) {
	if cfg.ID == "" {
		return nil, errors.New("local: id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	root := ""
	if cfg.ResourceRoot != "" {
		abs, err := filepath.Abs(cfg.ResourceRoot)
		if err != nil {
			return nil, fmt.Errorf("local: resource root: %w", err)
		}
		root = abs
	}

	c := &Catalog{
		id:        cfg.ID,
		version:   cfg.Version,
		root:      root,
		seedFile:  cfg.SeedFile,
		preIngest: preIngest,
		logger:    logger.With(zap.String("source", cfg.ID)),
		cards:     make(map[string]metacard.Metacard),
	}

	if cfg.SeedFile != "" {
		if _, err := c.Reload(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SyncStats counts the records one Reload changed.
type SyncStats struct {
	Created int
	Updated int
	Deleted int
}

// Reload re-reads the seed file and applies the difference as create, update
// and delete operations, in that order, each seen by the pre-ingest plugins.
// A rejected step stops the reload; earlier steps stay applied.
func (c *Catalog) Reload(ctx context.Context) (SyncStats, error) {
	if c.seedFile == "" {
		return SyncStats{}, errors.New("local: no seed file configured")
	}
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	seed, err := loadSeed(c.seedFile, c.id)
	if err != nil {
		return SyncStats{}, fmt.Errorf("local: %w", err)
	}
	creates, updates, deletes := c.diff(seed)

	var stats SyncStats
	if len(creates) > 0 {
		if _, err := c.Create(ctx, creates); err != nil {
			return stats, fmt.Errorf("local: reload: %w", err)
		}
		stats.Created = len(creates)
	}
	if len(updates) > 0 {
		if _, err := c.Update(ctx, updates); err != nil {
			return stats, fmt.Errorf("local: reload: %w", err)
		}
		stats.Updated = len(updates)
	}
	if len(deletes) > 0 {
		if _, err := c.Delete(ctx, deletes); err != nil {
			return stats, fmt.Errorf("local: reload: %w", err)
		}
		stats.Deleted = len(deletes)
	}

	c.logger.Info("Seed applied",
		zap.String("file", c.seedFile),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("deleted", stats.Deleted),
	)
	return stats, nil
}

// diff splits seed into new and changed records, plus the ids it no longer lists.
func (c *Catalog) diff(seed []metacard.Metacard) (creates, updates []metacard.Metacard, deletes []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	listed := make(map[string]struct{}, len(seed))
	for _, card := range seed {
		listed[card.ID()] = struct{}{}
		cur, ok := c.cards[card.ID()]
		switch {
		case !ok:
			creates = append(creates, card)
		case !cur.Equal(card.WithSourceID(c.id)):
			updates = append(updates, card)
		}
	}
	for _, id := range c.order {
		if _, ok := listed[id]; !ok {
			deletes = append(deletes, id)
		}
	}
	return creates, updates, deletes
}

// ID returns the catalog's source id.
func (c *Catalog) ID() string { return c.id }

// Version returns the configured version string.
func (c *Catalog) Version() string { return c.version }

// ContentTypes lists the distinct content types of stored records.
func (c *Catalog) ContentTypes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, card := range c.cards {
		if ct := card.ContentType(); ct != "" {
			out = append(out, ct)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// IsAvailable is always true for the in-process catalog.
func (c *Catalog) IsAvailable(context.Context) bool { return true }

// Query evaluates the filter over every record, then sorts and pages.
// Hits is the number of matches before paging.
func (c *Catalog) Query(ctx context.Context, req query.Request) (source.QueryResult, error) {
	q := req.Query()
	expr := q.Filter()

	c.mu.RLock()
	matched := make([]metacard.Metacard, 0)
	for _, id := range c.order {
		if card := c.cards[id]; expr.Matches(card) {
			matched = append(matched, card)
		}
	}
	c.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return source.QueryResult{}, fmt.Errorf("local query: %w", err)
	}

	if s := q.Sort(); s.Attribute != "" {
		slices.SortStableFunc(matched, func(a, b metacard.Metacard) int {
			av, _ := a.Attribute(s.Attribute)
			bv, _ := b.Attribute(s.Attribute)
			if s.Descending {
				return cmp.Compare(bv, av)
			}
			return cmp.Compare(av, bv)
		})
	}

	total := len(matched)
	start := min(max(q.StartIndex()-1, 0), total)
	end := min(start+q.PageSize(), total)

	results := make([]result.Result, 0, end-start)
	for _, card := range matched[start:end] {
		results = append(results, result.New(card, 1))
	}
	return source.QueryResult{Results: results, Hits: int64(total)}, nil
}

// RetrieveResource reads a file:// product below the resource root.
func (c *Catalog) RetrieveResource(
	_ context.Context, uri string, properties map[string]any,
) (resource.Resource, error) {
	path, err := c.resolvePath(uri)
	if err != nil {
		return resource.Resource{}, err
	}

	f, err := os.Open(path) //nolint:gosec // confined to root by resolvePath
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return resource.Resource{}, domain.NewResourceNotFound(uri)
		}
		return resource.Resource{}, fmt.Errorf("%w: open %q: %w", domain.ErrIO, uri, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return resource.Resource{}, fmt.Errorf("%w: stat %q: %w", domain.ErrIO, uri, err)
	}
	if info.IsDir() {
		return resource.Resource{}, fmt.Errorf("%w: %q is a directory", domain.ErrResourceNotSupported, uri)
	}

	if skip := resource.BytesToSkip(properties); skip > 0 {
		if _, err := f.Seek(min(skip, info.Size()), io.SeekStart); err != nil {
			return resource.Resource{}, fmt.Errorf("%w: seek %q: %w", domain.ErrIO, uri, err)
		}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return resource.Resource{}, fmt.Errorf("%w: read %q: %w", domain.ErrIO, uri, err)
	}

	mt := mime.TypeByExtension(filepath.Ext(path))
	if mt == "" {
		mt = defaultMimeType
	}
	return resource.Resource{Name: filepath.Base(path), MimeType: mt, Data: data}, nil
}

func (c *Catalog) resolvePath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s serves file:// only, got %q", domain.ErrResourceNotSupported, c.id, uri)
	}
	if c.root == "" {
		return "", fmt.Errorf("%w: %s has no resource root", domain.ErrResourceNotSupported, c.id)
	}
	// Cleaning against "/" drops any leading "..", so the join stays below root.
	path := filepath.Join(c.root, filepath.FromSlash(filepath.ToSlash(filepath.Clean("/"+u.Path))))
	if r, err := filepath.Rel(c.root, path); err != nil || strings.HasPrefix(r, "..") {
		return "", fmt.Errorf("%w: %q escapes resource root", domain.ErrResourceNotSupported, uri)
	}
	return path, nil
}

// Create adds new records. Existing ids are rejected.
func (c *Catalog) Create(ctx context.Context, cards []metacard.Metacard) ([]metacard.Metacard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(cards))
	for _, card := range cards {
		if _, ok := c.cards[card.ID()]; ok {
			return nil, fmt.Errorf("%w: record %q already exists", domain.ErrIngest, card.ID())
		}
		if _, ok := seen[card.ID()]; ok {
			return nil, fmt.Errorf("%w: record %q repeated in request", domain.ErrIngest, card.ID())
		}
		seen[card.ID()] = struct{}{}
	}

	if err := c.runPreIngest(ctx, operation.Create, nil); err != nil {
		return nil, err
	}

	created := make([]metacard.Metacard, 0, len(cards))
	for _, card := range cards {
		card = card.WithSourceID(c.id)
		c.put(card)
		created = append(created, card)
	}
	c.logger.Info("Records created", zap.Int("count", len(created)))
	return created, nil
}

// Update replaces existing records. Unknown ids are rejected.
func (c *Catalog) Update(ctx context.Context, cards []metacard.Metacard) ([]metacard.Metacard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous, err := c.existing(idsOf(cards))
	if err != nil {
		return nil, err
	}
	if err := c.runPreIngest(ctx, operation.Update, previous); err != nil {
		return nil, err
	}

	updated := make([]metacard.Metacard, 0, len(cards))
	for _, card := range cards {
		card = card.WithSourceID(c.id)
		c.cards[card.ID()] = card
		updated = append(updated, card)
	}
	c.logger.Info("Records updated", zap.Int("count", len(updated)))
	return updated, nil
}

// Delete removes records and returns them as they were.
func (c *Catalog) Delete(ctx context.Context, ids []string) ([]metacard.Metacard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous, err := c.existing(ids)
	if err != nil {
		return nil, err
	}
	if err := c.runPreIngest(ctx, operation.Delete, previous); err != nil {
		return nil, err
	}

	for _, id := range ids {
		delete(c.cards, id)
	}
	c.order = slices.DeleteFunc(c.order, func(id string) bool {
		_, ok := c.cards[id]
		return !ok
	})
	c.logger.Info("Records deleted", zap.Int("count", len(previous)))
	return previous, nil
}

// Len returns the number of stored records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cards)
}

func (c *Catalog) runPreIngest(ctx context.Context, kind operation.Kind, previous []metacard.Metacard) error {
	tx, err := operation.NewTransaction(kind, previous)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIngest, err)
	}
	if err := plugin.RunPreIngest(ctx, c.preIngest, tx); err != nil {
		c.logger.Info("Ingest rejected by plugin",
			zap.String("transaction", tx.ID()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", domain.ErrIngest, err)
	}
	return nil
}

// existing returns the stored records for ids. Caller holds the lock.
func (c *Catalog) existing(ids []string) ([]metacard.Metacard, error) {
	out := make([]metacard.Metacard, 0, len(ids))
	for _, id := range ids {
		card, ok := c.cards[id]
		if !ok {
			return nil, fmt.Errorf("%w: record %q does not exist", domain.ErrIngest, id)
		}
		out = append(out, card)
	}
	return out, nil
}

// put inserts or replaces a record. Caller holds the lock.
func (c *Catalog) put(card metacard.Metacard) {
	if _, ok := c.cards[card.ID()]; !ok {
		c.order = append(c.order, card.ID())
	}
	c.cards[card.ID()] = card
}

func idsOf(cards []metacard.Metacard) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID()
	}
	return ids
}

// Package csvstore implements the listing store as an append-only CSV file.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/jobwatch/internal/listing"
)

// Config captures the parameters for the CSV listing store.
type Config struct {
	// Path is the CSV file holding every listing ever persisted.
	Path string `mapstructure:"path" yaml:"path"`
}

// Store reads and appends listing rows. It assumes a single writer.
type Store struct {
	path string
}

// New creates a Store, creating the parent directory of the file if needed.
// The file itself is created on first Append.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	dir := filepath.Dir(cfg.Path)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat store directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("store directory %q is not a directory", dir)
	}
	if info, err := os.Stat(cfg.Path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory", cfg.Path)
	}
	return &Store{path: cfg.Path}, nil
}

// Path returns the location of the CSV file.
func (s *Store) Path() string {
	return s.path
}

// Keys returns the set of dedup keys (links) already stored.
// A store that does not exist yet has no keys.
func (s *Store) Keys(ctx context.Context) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	err := s.scan(ctx, func(l listing.Listing) {
		keys[l.Key()] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// FilterNew returns the candidates whose link is not stored yet, keeping
// their order. Links are compared as exact strings.
func (s *Store) FilterNew(ctx context.Context, candidates []listing.Listing) ([]listing.Listing, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	fresh := make([]listing.Listing, 0, len(candidates))
	for _, c := range candidates {
		if _, seen := keys[c.Key()]; seen {
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh, nil
}

// ReadAll returns every stored listing in file order.
func (s *Store) ReadAll(ctx context.Context) ([]listing.Listing, error) {
	var out []listing.Listing
	if err := s.scan(ctx, func(l listing.Listing) { out = append(out, l) }); err != nil {
		return nil, err
	}
	return out, nil
}

// Append writes one row per listing, preceded by the header when the file is
// new or empty. It returns the number of rows written, which is 0 on error.
func (s *Store) Append(ctx context.Context, listings []listing.Listing) (written int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context canceled: %w", err)
	}
	if len(listings) == 0 {
		return 0, nil
	}

	// #nosec G304 -- the store path comes from trusted configuration.
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("open store %s: %w", s.path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			written, err = 0, fmt.Errorf("close store %s: %w", s.path, cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat store %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(listing.Header); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
	}
	for _, l := range listings {
		if err := w.Write(l.Row()); err != nil {
			return 0, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flush store %s: %w", s.path, err)
	}
	return len(listings), nil
}

// scan calls fn for every data row. The columns are located by header name,
// so a store with reordered or extra columns still reads correctly. Only Link
// is required; any other absent column reads as a missing field.
func (s *Store) scan(ctx context.Context, fn func(listing.Listing)) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	// #nosec G304 -- the store path comes from trusted configuration.
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open store %s: %w", s.path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header of %s: %w", s.path, err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return fmt.Errorf("store %s: %w", s.path, err)
	}

	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s line %d: %w", s.path, line, err)
		}
		cells := make([]string, len(idx))
		for i, col := range idx {
			switch {
			case col < 0:
				cells[i] = listing.Sentinel
			case col < len(record):
				cells[i] = record[col]
			}
		}
		l, err := listing.FromRow(cells)
		if err != nil {
			return fmt.Errorf("parse %s line %d: %w", s.path, line, err)
		}
		fn(l)
	}
}

func columnIndex(header []string) ([]int, error) {
	idx := make([]int, len(listing.Header))
	for i, name := range listing.Header {
		idx[i] = -1
		for col, h := range header {
			if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == name {
				idx[i] = col
				break
			}
		}
	}
	if idx[len(idx)-1] < 0 {
		return nil, fmt.Errorf("header has no %q column", listing.Header[len(listing.Header)-1])
	}
	return idx, nil
}

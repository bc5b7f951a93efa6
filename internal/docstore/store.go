// Package docstore persists the documents of a compute unit as JSON files,
// one directory per container and one file per document.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/partql/pkg/executor"
)

const docExt = ".json"

var (
	// ErrNotFound is returned by Get for a missing document.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID is returned for documents without a usable id.
	ErrInvalidID = errors.New("invalid document id")
	// ErrInvalidContainer is returned for container names that are not a
	// single path segment.
	ErrInvalidContainer = errors.New("invalid container name")
)

var segment = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func validSegment(s string) bool {
	return segment.MatchString(s) && s != "." && s != ".."
}

// Store is a file-backed document store rooted at a data directory.
type Store struct {
	root        string
	concurrency int
}

// Option configures a Store.
type Option func(*Store)

// WithReadConcurrency bounds how many files List reads at once.
func WithReadConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a store rooted at dir. The directory is created lazily.
func New(dir string, opts ...Option) *Store {
	s := &Store{root: dir, concurrency: 8}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the data directory.
func (s *Store) Root() string {
	return s.root
}

// DocumentID returns the id of doc as a file-name-safe string. The id field
// may be a JSON string or an integer.
func DocumentID(doc executor.Document) (string, error) {
	raw, ok := doc["id"]
	if !ok {
		return "", fmt.Errorf("%w: missing id field", ErrInvalidID)
	}

	var id string
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	switch v := v.(type) {
	case string:
		id = v
	case json.Number:
		if _, err := v.Int64(); err != nil {
			return "", fmt.Errorf("%w: %s is not an integer", ErrInvalidID, v)
		}
		id = v.String()
	default:
		return "", fmt.Errorf("%w: id must be a string or an integer", ErrInvalidID)
	}

	if !validSegment(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return id, nil
}

func (s *Store) containerDir(container string) (string, error) {
	if !validSegment(container) {
		return "", fmt.Errorf("%w: %q", ErrInvalidContainer, container)
	}
	return filepath.Join(s.root, container), nil
}

// Upsert writes doc under its id and returns the id. The file is replaced
// atomically, so concurrent readers see the old or the new document.
func (s *Store) Upsert(ctx context.Context, container string, doc executor.Document) (string, error) {
	dir, err := s.containerDir(container)
	if err != nil {
		return "", err
	}
	id, err := DocumentID(doc)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create container directory: %w", err)
	}

	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write document %s: %w", id, err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, id+docExt)); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to store document %s: %w", id, err)
	}
	return id, nil
}

// Get returns the stored bytes of a document.
func (s *Store) Get(ctx context.Context, container, id string) ([]byte, error) {
	dir, err := s.containerDir(container)
	if err != nil {
		return nil, err
	}
	if !validSegment(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, id+docExt))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	return data, nil
}

// List decodes every document of a container in file-name order. A container
// nothing was written to yet is empty.
func (s *Store) List(ctx context.Context, container string) ([]executor.Document, error) {
	dir, err := s.containerDir(container)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []executor.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list container %s: %w", container, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != docExt {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}

	docs := make([]executor.Document, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", filepath.Base(file), err)
			}
			var doc executor.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to decode %s: %w", filepath.Base(file), err)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

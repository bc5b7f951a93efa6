// Package registry stores the logical containers known to the gateway and
// the partition-key column of each.
package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/leapstack-labs/partql/pkg/parser"
	"github.com/leapstack-labs/partql/pkg/token"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	// ErrNotFound is returned when a container is not registered.
	ErrNotFound = errors.New("container not found")
	// ErrExists is returned when creating a container whose name is taken.
	ErrExists = errors.New("container already exists")
	// ErrInvalidName is returned for names that are not a single path segment.
	ErrInvalidName = errors.New("invalid container name")
	// ErrInvalidPartitionKey is returned for a partition-key path that a
	// WHERE clause cannot name.
	ErrInvalidPartitionKey = errors.New("partition key path must be a query identifier")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidName reports whether name can be used as a container name.
func ValidName(name string) bool {
	return validName.MatchString(name)
}

// ValidPartitionKeyPath reports whether path lexes as a single identifier,
// so queries can filter on it.
func ValidPartitionKeyPath(path string) bool {
	toks := parser.Tokenize(path)
	return len(toks) == 1 && toks[0].Kind == token.Identifier && toks[0].Value == path
}

// Container is a registered logical container.
type Container struct {
	Name             string    `json:"name"`
	PartitionKeyPath string    `json:"partitionKeyPath"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Registry is the SQLite-backed container registry.
type Registry struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the registry database at path and applies
// pending migrations. Use ":memory:" for a throwaway registry.
func Open(ctx context.Context, path string) (*Registry, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping registry database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Registry {
	return &Registry{db: db, now: time.Now}
}

// Migrate applies the embedded migrations to db.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Create registers a container. CreatedAt is set by the registry.
func (r *Registry) Create(ctx context.Context, c Container) (Container, error) {
	if !ValidName(c.Name) {
		return Container{}, fmt.Errorf("%w: %q", ErrInvalidName, c.Name)
	}
	if !ValidPartitionKeyPath(c.PartitionKeyPath) {
		return Container{}, fmt.Errorf("%w: %q", ErrInvalidPartitionKey, c.PartitionKeyPath)
	}
	c.CreatedAt = r.now().UTC().Truncate(time.Millisecond)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO containers (name, partition_key_path, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, c.Name, c.PartitionKeyPath, c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Container{}, fmt.Errorf("failed to insert container %s: %w", c.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Container{}, fmt.Errorf("failed to insert container %s: %w", c.Name, err)
	}
	if n == 0 {
		return Container{}, fmt.Errorf("%w: %s", ErrExists, c.Name)
	}
	return c, nil
}

// Get returns a container by name.
func (r *Registry) Get(ctx context.Context, name string) (Container, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, partition_key_path, created_at
		FROM containers
		WHERE name = ?
	`, name)

	c, err := scanContainer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Container{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Container{}, fmt.Errorf("failed to get container %s: %w", name, err)
	}
	return c, nil
}

// PartitionKeyPath returns the partition-key column of a container.
func (r *Registry) PartitionKeyPath(ctx context.Context, name string) (string, error) {
	c, err := r.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return c.PartitionKeyPath, nil
}

// List returns every container ordered by name.
func (r *Registry) List(ctx context.Context) ([]Container, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, partition_key_path, created_at
		FROM containers
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	defer rows.Close()

	containers := []Container{}
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan container: %w", err)
		}
		containers = append(containers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return containers, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContainer(s scanner) (Container, error) {
	var c Container
	var createdAt string
	if err := s.Scan(&c.Name, &c.PartitionKeyPath, &createdAt); err != nil {
		return Container{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Container{}, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	c.CreatedAt = t
	return c, nil
}

// Package postgres provides a table-backed storage layer over pgx. Each
// Layer serves one resource table; relationship fields are resolved through
// foreign key columns declared in the table configuration.
package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/strata-api/strata/internal/storage"
)

// DBTX abstracts the pgx query surface so a Layer works against a pool or
// a transaction alike.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RelConfig declares how one relationship field maps onto the database.
// To-one relationships store the foreign key on the owning table
// (OwnerColumn); to-many relationships store it on the related table
// (ChildColumn).
type RelConfig struct {
	// Type is the related resource's wire type name.
	Type string
	// Table is the related table name.
	Table string
	// IDColumn is the related table's identifier column; defaults to "id".
	IDColumn string
	// Columns are the related table's selectable columns.
	Columns []string
	// OwnerColumn is the foreign key column on the owning table.
	OwnerColumn string
	// ChildColumn is the foreign key column on the related table.
	ChildColumn string
	// Many marks a to-many relationship.
	Many bool
}

// TableConfig declares the database mapping of one resource table. Column
// names double as storage field names, so objects read from a Layer feed
// straight into schema serialization.
type TableConfig struct {
	Table string
	// IDColumn defaults to "id".
	IDColumn string
	// URLParam is the route parameter carrying the identifier; defaults
	// to IDColumn.
	URLParam string
	// Columns enumerates the selectable columns, identifier included.
	Columns []string
	// SoftDeleteColumn, when set, marks rows deleted by a populated
	// timestamp instead of removal.
	SoftDeleteColumn string
	Relationships    map[string]RelConfig
}

func (c *TableConfig) normalize() {
	if c.IDColumn == "" {
		c.IDColumn = "id"
	}
	if c.URLParam == "" {
		c.URLParam = c.IDColumn
	}
	for name, rel := range c.Relationships {
		if rel.IDColumn == "" {
			rel.IDColumn = "id"
			c.Relationships[name] = rel
		}
	}
}

// Layer is a storage layer over one table. It implements storage.Layer
// and storage.RelationshipLayer.
type Layer struct {
	db  DBTX
	cfg TableConfig
	log *slog.Logger
}

var (
	_ storage.Layer             = (*Layer)(nil)
	_ storage.RelationshipLayer = (*Layer)(nil)
)

// NewLayer creates a Layer for one table.
func NewLayer(db DBTX, cfg TableConfig, log *slog.Logger) *Layer {
	if db == nil {
		// ALLOW-PANIC: constructor enforcing required dependency
		panic("postgres: db cannot be nil")
	}
	if cfg.Table == "" {
		// ALLOW-PANIC: constructor enforcing required dependency
		panic("postgres: table name cannot be empty")
	}
	cfg.normalize()
	if log == nil {
		log = slog.Default()
	}
	return &Layer{
		db:  db,
		cfg: cfg,
		log: log.With(slog.String("component", "postgres_layer"), slog.String("table", cfg.Table)),
	}
}

func (l *Layer) hasColumn(name string) bool {
	for _, col := range l.cfg.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Package schemacache keeps a periodically refreshed snapshot of the
// database's tables and columns, rendered as prompt context for the
// no-tools answer path.
package schemacache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/choijun/dbhub/internal/db"
)

type Cache struct {
	exec db.Executor
	cron *cron.Cron
	log  *slog.Logger

	mu      sync.RWMutex
	tables  []db.TableSummary
	schemas map[string]*db.TableSchema
}

func New(exec db.Executor, log *slog.Logger) *Cache {
	return &Cache{
		exec:    exec,
		cron:    cron.New(),
		log:     log,
		schemas: make(map[string]*db.TableSchema),
	}
}

// Start does an initial refresh and schedules periodic ones. spec is a cron
// expression; empty disables the schedule.
func (c *Cache) Start(spec string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("initial schema refresh: %w", err)
	}
	if spec == "" {
		return nil
	}
	_, err := c.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			c.log.Warn("schema refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling schema refresh: %w", err)
	}
	c.cron.Start()
	return nil
}

func (c *Cache) Stop() {
	c.cron.Stop()
}

// Refresh re-reads the table list and every table's schema. A table whose
// describe fails is kept in the listing without columns.
func (c *Cache) Refresh(ctx context.Context) error {
	tables, err := c.exec.ListSchemas(ctx)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	schemas := make(map[string]*db.TableSchema, len(tables))
	for _, t := range tables {
		schema, err := c.exec.DescribeSchema(ctx, t.Name)
		if err != nil {
			c.log.Warn("describe failed during refresh", "table", t.Name, "error", err)
			continue
		}
		schemas[t.Name] = schema
	}

	c.mu.Lock()
	c.tables = tables
	c.schemas = schemas
	c.mu.Unlock()
	c.log.Info("schema cache refreshed", "tables", len(tables))
	return nil
}

// Tables returns the cached table listing.
func (c *Cache) Tables() []db.TableSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]db.TableSummary, len(c.tables))
	copy(out, c.tables)
	return out
}

// Context renders the cached schemas as a compact text block for the system
// prompt.
func (c *Cache) Context() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	for _, t := range c.tables {
		b.WriteString("Table: ")
		b.WriteString(t.Name)
		if t.Comment != "" {
			b.WriteString(" (")
			b.WriteString(t.Comment)
			b.WriteString(")")
		}
		b.WriteString("\n")
		schema, ok := c.schemas[t.Name]
		if !ok {
			continue
		}
		for _, col := range schema.Columns {
			b.WriteString("  - ")
			b.WriteString(col.Name)
			b.WriteString(" (")
			b.WriteString(col.Type)
			b.WriteString(")")
			if isBinaryType(col.Type) {
				b.WriteString(" [binary data]")
			}
			if col.Comment != "" {
				b.WriteString(" -- ")
				b.WriteString(col.Comment)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func isBinaryType(t string) bool {
	lower := strings.ToLower(t)
	return strings.Contains(lower, "binary") || strings.Contains(lower, "blob") || strings.Contains(lower, "bytea")
}

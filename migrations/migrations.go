// Package migrations embeds the run archive schema.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Directions
const (
	Up   = "up"
	Down = "down"
)

// Execer runs a statement against the archive
type Execer interface {
	ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error)
}

// Files lists the migration files for a direction, in the order they apply
func Files(direction string) ([]string, error) {
	if direction != Up && direction != Down {
		return nil, fmt.Errorf("unknown migration direction %q", direction)
	}

	names, err := fs.Glob(files, "*."+direction+".sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	if direction == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}
	return names, nil
}

// Run applies every migration of a direction and returns the files applied
func Run(ctx context.Context, db Execer, direction string) ([]string, error) {
	names, err := Files(direction)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(names))
	for _, name := range names {
		content, err := files.ReadFile(name)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		for _, stmt := range statements(string(content)) {
			if _, err := db.ExecContext(ctx, "migrate", stmt); err != nil {
				return applied, fmt.Errorf("failed to execute migration %s: %w", name, err)
			}
		}
		applied = append(applied, name)
	}
	return applied, nil
}

// statements splits a migration file on semicolons
func statements(content string) []string {
	var out []string
	for _, part := range strings.Split(content, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

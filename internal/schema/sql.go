package schema

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"strings"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// SQLStep builds a step that executes the embedded script sql/<file>.
func SQLStep(version int, name, file string) Step {
	return Step{
		Version: version,
		Name:    name,
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			content, err := migrationFiles.ReadFile(path.Join("sql", file))
			if err != nil {
				return fmt.Errorf("failed to read migration file %s: %w", file, err)
			}
			return execScript(ctx, tx, string(content))
		},
	}
}

// execScript runs each ;-separated statement of script in tx.
func execScript(ctx context.Context, tx *sql.Tx, script string) error {
	for stmt := range strings.SplitSeq(script, ";") {
		stmt = strings.TrimSpace(removeComments(stmt))
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}
	return nil
}

// removeComments strips -- comments and blank lines from a statement.
func removeComments(stmt string) string {
	var lines []string
	for line := range strings.SplitSeq(stmt, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

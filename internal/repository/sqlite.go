package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/psds-microservice/issue-tracker/internal/model"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var sqliteMigrationsFS embed.FS

const issueColumns = `id, project, issue_title, issue_text, created_by, assigned_to, status_text, open, created_on, updated_on`

// SQLiteRepository stores issues in a local SQLite file (pure Go, no CGO).
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database at dbPath.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; concurrent requests queue in the pool instead of
	// failing with "database is locked".
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &SQLiteRepository{db: db}, nil
}

// Migrate runs the embedded SQL files in name order, once each.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	entries, err := sqliteMigrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		var count int
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}
		data, err := sqliteMigrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Find(ctx context.Context, c Criteria) ([]model.Issue, error) {
	items := make([]model.Issue, 0)
	var conditions []string
	var args []any
	for _, field := range sortedKeys(c) {
		if !isFilterable(field) {
			return nil, fmt.Errorf("find issues: unknown field %q", field)
		}
		if field == model.FieldOpen {
			open, ok := parseOpen(c[field])
			if !ok {
				return items, nil
			}
			conditions = append(conditions, "open = ?")
			args = append(args, boolToInt(open))
			continue
		}
		conditions = append(conditions, column(field)+" = ?")
		args = append(args, c[field])
	}

	query := "SELECT " + issueColumns + " FROM issues"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_on ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var issue model.Issue
		if err := rows.Scan(&issue.ID, &issue.Project, &issue.IssueTitle, &issue.IssueText, &issue.CreatedBy,
			&issue.AssignedTo, &issue.StatusText, &issue.Open, &issue.CreatedOn, &issue.UpdatedOn); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issue.CreatedOn = issue.CreatedOn.UTC()
		issue.UpdatedOn = issue.UpdatedOn.UTC()
		items = append(items, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, issue *model.Issue) error {
	if issue.ID == "" {
		issue.ID = NewID()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO issues ("+issueColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		issue.ID, issue.Project, issue.IssueTitle, issue.IssueText, issue.CreatedBy,
		issue.AssignedTo, issue.StatusText, boolToInt(issue.Open), issue.CreatedOn, issue.UpdatedOn,
	)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateByID(ctx context.Context, id string, ch Changes) (int64, error) {
	if len(ch) == 0 {
		return 0, nil
	}
	var sets []string
	var args []any
	for _, field := range sortedKeys(ch) {
		v := ch[field]
		switch t := v.(type) {
		case bool:
			v = boolToInt(t)
		case time.Time:
			v = t.UTC()
		}
		sets = append(sets, column(field)+" = ?")
		args = append(args, v)
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE issues SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return 0, fmt.Errorf("update issue %s: %w", id, err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("delete issue %s: %w", id, err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

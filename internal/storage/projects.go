package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveProject inserts or updates a project. CreatedAt is preserved on
// update; UpdatedAt always reflects this call.
func (s *Store) SaveProject(ctx context.Context, p Project) error {
	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := now
	if !p.CreatedAt.IsZero() {
		createdAt = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	tags := p.Tags
	if tags == "" {
		tags = "[]"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, title, description, tags, demo_url, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			tags = excluded.tags,
			demo_url = excluded.demo_url,
			source_url = excluded.source_url,
			updated_at = excluded.updated_at`,
		p.ID, p.Title, p.Description, tags, p.DemoURL, p.SourceURL, createdAt, now,
	)
	return err
}

// GetProject returns the project with the given ID, or ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, tags, demo_url, source_url, created_at, updated_at
		FROM projects WHERE id = ?`, id,
	)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return Project{}, ErrNotFound
	}
	return p, err
}

// GetProjectsByIDs returns the projects matching the given IDs, keyed by
// ID. Missing IDs are simply absent from the map.
func (s *Store) GetProjectsByIDs(ctx context.Context, ids []string) (map[string]Project, error) {
	result := make(map[string]Project, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := "?"
	args := make([]any, 0, len(ids))
	args = append(args, ids[0])
	for _, id := range ids[1:] {
		placeholders += ",?"
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, tags, demo_url, source_url, created_at, updated_at
		FROM projects WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

// ListProjects returns projects ordered by creation time, newest first.
func (s *Store) ListProjects(ctx context.Context, limit, offset int) ([]Project, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, tags, demo_url, source_url, created_at, updated_at
		FROM projects ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// CountProjects returns the number of stored projects.
func (s *Store) CountProjects(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var p Project
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Tags, &p.DemoURL, &p.SourceURL, &createdAt, &updatedAt); err != nil {
		return Project{}, err
	}
	var err error
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Project{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Project{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return p, nil
}

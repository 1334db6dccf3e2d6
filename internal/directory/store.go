// Package directory provides PostgreSQL-backed lookup of registered
// schools. The intake conversation resolves school codes and free-text
// name searches through it.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/speakfree/reporting/internal/dialogue"
)

// maxNameResults caps how many suggestions a name search returns.
const maxNameResults = 5

// Store resolves schools in PostgreSQL. It implements dialogue.Directory.
type Store struct {
	db *sql.DB
}

// NewStore creates a directory store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SchoolByCode returns the school registered under the given code, or
// nil when the code is unknown.
func (s *Store) SchoolByCode(ctx context.Context, code string) (*dialogue.School, error) {
	const query = `
		SELECT id, school_code, name
		FROM schools
		WHERE school_code = $1`

	var school dialogue.School
	err := s.db.QueryRowContext(ctx, query, code).Scan(&school.ID, &school.Code, &school.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory: school by code: %w", err)
	}
	return &school, nil
}

// SearchByName returns up to 5 schools whose name contains the given
// fragment, case-insensitively, best prefix matches first.
func (s *Store) SearchByName(ctx context.Context, name string) ([]dialogue.School, error) {
	const query = `
		SELECT id, school_code, name
		FROM schools
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name ILIKE $1 || '%' DESC, name
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, name, maxNameResults)
	if err != nil {
		return nil, fmt.Errorf("directory: search by name: %w", err)
	}
	defer rows.Close()

	var schools []dialogue.School
	for rows.Next() {
		var school dialogue.School
		if err := rows.Scan(&school.ID, &school.Code, &school.Name); err != nil {
			return nil, fmt.Errorf("directory: scan school: %w", err)
		}
		schools = append(schools, school)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: search rows: %w", err)
	}
	return schools, nil
}

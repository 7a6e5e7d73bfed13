package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"metamorphosis/internal/blueprint"
)

// PostgresStore persists designs in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// SaveDesign stores the provided design.
func (s *PostgresStore) SaveDesign(ctx context.Context, input Design) (Design, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}

	materials, err := json.Marshal(input.Materials)
	if err != nil {
		return Design{}, fmt.Errorf("marshal materials: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO designs (id, session_id, title, category, materials, assembly_summary, upcycle_score, visualization_prompt, concept_url, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		input.ID, input.SessionID, input.Title, string(input.Category), materials,
		input.AssemblySummary, input.UpcycleScore, input.VisualizationPrompt,
		input.ConceptURL, input.CreatedAt); err != nil {
		return Design{}, fmt.Errorf("insert design: %w", err)
	}

	return input, nil
}

// ListDesigns returns the most recent designs, newest first.
func (s *PostgresStore) ListDesigns(ctx context.Context) ([]Design, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, title, category, materials, assembly_summary, upcycle_score, visualization_prompt, concept_url, created_at
         FROM designs ORDER BY created_at DESC LIMIT 50`)
	if err != nil {
		return nil, fmt.Errorf("query designs: %w", err)
	}
	defer rows.Close()

	designs := []Design{}
	for rows.Next() {
		item, err := scanDesign(rows)
		if err != nil {
			return nil, err
		}
		designs = append(designs, item)
	}

	return designs, rows.Err()
}

// GetDesign returns a design by ID.
func (s *PostgresStore) GetDesign(ctx context.Context, id string) (Design, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, session_id, title, category, materials, assembly_summary, upcycle_score, visualization_prompt, concept_url, created_at
         FROM designs WHERE id = $1`, id)

	item, err := scanDesign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Design{}, ErrNotFound
	}
	return item, err
}

// UpdateConceptURL records the exported concept location for a design.
func (s *PostgresStore) UpdateConceptURL(ctx context.Context, id, url string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE designs SET concept_url = $2 WHERE id = $1`, id, url)
	if err != nil {
		return fmt.Errorf("update concept url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDesign removes a design by ID.
func (s *PostgresStore) DeleteDesign(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM designs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete design: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases database resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func scanDesign(row pgx.Row) (Design, error) {
	var (
		item      Design
		category  string
		materials []byte
	)
	if err := row.Scan(&item.ID, &item.SessionID, &item.Title, &category, &materials,
		&item.AssemblySummary, &item.UpcycleScore, &item.VisualizationPrompt,
		&item.ConceptURL, &item.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Design{}, pgx.ErrNoRows
		}
		return Design{}, fmt.Errorf("scan design: %w", err)
	}
	item.Category = blueprint.Category(category)
	if len(materials) > 0 {
		if err := json.Unmarshal(materials, &item.Materials); err != nil {
			return Design{}, fmt.Errorf("unmarshal materials: %w", err)
		}
	}
	return item, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"metamorphosis/internal/blueprint"
)

// ErrNotFound indicates that a design could not be located in the backing store.
var ErrNotFound = errors.New("design not found")

// Design is one archived blueprint in the gallery, recorded after a
// successful analysis. ConceptURL is filled in once a rendered concept has
// been exported.
type Design struct {
	ID                  string               `json:"id"`
	SessionID           string               `json:"session_id"`
	Title               string               `json:"title"`
	Category            blueprint.Category   `json:"category"`
	Materials           []blueprint.Material `json:"materials"`
	AssemblySummary     string               `json:"assembly_summary"`
	UpcycleScore        int                  `json:"upcycle_score"`
	VisualizationPrompt string               `json:"visualization_prompt"`
	ConceptURL          string               `json:"concept_url,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

// Store defines the persistence behaviors the application relies on.
type Store interface {
	SaveDesign(ctx context.Context, input Design) (Design, error)
	ListDesigns(ctx context.Context) ([]Design, error)
	GetDesign(ctx context.Context, id string) (Design, error)
	UpdateConceptURL(ctx context.Context, id, url string) error
	DeleteDesign(ctx context.Context, id string) error
	Close()
}

// NewStore selects a backing store based on whether a database URL is provided.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewInMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS designs (
        id TEXT PRIMARY KEY,
        session_id TEXT NOT NULL,
        title TEXT NOT NULL,
        category TEXT NOT NULL,
        materials JSONB NOT NULL DEFAULT '[]'::jsonb,
        assembly_summary TEXT NOT NULL,
        upcycle_score INTEGER NOT NULL,
        visualization_prompt TEXT,
        concept_url TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`)
	if err != nil {
		return fmt.Errorf("create designs table: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adforge/ad-recipe-back/internal/domain"
)

// PostgresStore backs both the concepts cache and the recipes store with one
// shared connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) GetByArchiveID(ctx context.Context, adArchiveID string) (*domain.ConceptRecord, error) {
	var record domain.ConceptRecord
	err := s.pool.QueryRow(ctx, `
		SELECT ad_archive_id, image_url, concept_json, user_id
		FROM ad_concepts
		WHERE ad_archive_id = $1
	`, adArchiveID).Scan(
		&record.AdArchiveID,
		&record.ImageURL,
		&record.ConceptJSON,
		&record.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query ad concept: %w", err)
	}
	return &record, nil
}

func (s *PostgresStore) Store(ctx context.Context, record domain.ConceptRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ad_concepts (ad_archive_id, image_url, concept_json, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ad_archive_id)
		DO UPDATE SET image_url = $2, concept_json = $3, user_id = $4, created_at = $5
	`,
		record.AdArchiveID,
		record.ImageURL,
		record.ConceptJSON,
		record.UserID,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert ad concept: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, record domain.RecipeRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ad_recipes (
			ad_archive_id,
			image_url,
			sales_url,
			ad_concept_json,
			sales_page_json,
			recipe_prompt,
			user_id,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		record.AdArchiveID,
		record.ImageURL,
		record.SalesURL,
		record.AdConceptJSON,
		record.SalesPageJSON,
		record.RecipePrompt,
		record.UserID,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert ad recipe: %w", err)
	}
	return nil
}

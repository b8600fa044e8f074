package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/persistence"
)

// VersionRepository handles journey version snapshots. Versions are written
// once on publish and never updated.
type VersionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(db *sql.DB, logger *slog.Logger) *VersionRepository {
	return &VersionRepository{db: db, logger: logger}
}

func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.JourneyVersion, error) {
	query := `
		SELECT
			id
		  , journey_id
		  , organization_id
		  , version_number
		  , definition
		  , published_at
		  , created_at
		FROM journey_versions
		WHERE id = $1
	`

	version, err := r.scanVersion(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrVersionNotFound
		}

		return nil, fmt.Errorf("failed to scan journey version: %w", err)
	}

	return version, nil
}

// Save inserts a version snapshot. A version-number collision between
// concurrent publishes surfaces as ErrDuplicateVersionNumber.
func (r *VersionRepository) Save(ctx context.Context, version *models.JourneyVersion) error {
	if version.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate version ID: %w", err)
		}

		version.ID = id.String()
	}

	definitionJSON, err := json.Marshal(version.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	query := `
		INSERT INTO journey_versions (id, journey_id, organization_id,
version_number, definition, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		version.ID,
		version.JourneyID,
		version.OrganizationID,
		version.VersionNumber,
		definitionJSON,
		version.PublishedAt,
		version.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return persistence.ErrDuplicateVersionNumber
		}

		return fmt.Errorf("failed to save journey version: %w", err)
	}

	return nil
}

// CurrentPublished returns the journey's highest-numbered version.
func (r *VersionRepository) CurrentPublished(ctx context.Context, journeyID string) (*models.JourneyVersion, error) {
	query := `
		SELECT
			id
		  , journey_id
		  , organization_id
		  , version_number
		  , definition
		  , published_at
		  , created_at
		FROM journey_versions
		WHERE journey_id = $1
		ORDER BY version_number DESC
		LIMIT 1
	`

	version, err := r.scanVersion(r.db.QueryRowContext(ctx, query, journeyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNoPublishedVersion
		}

		return nil, fmt.Errorf("failed to scan journey version: %w", err)
	}

	return version, nil
}

// NextVersionNumber computes max+1 over the journey's existing versions.
func (r *VersionRepository) NextVersionNumber(ctx context.Context, journeyID string) (int, error) {
	var next int

	query := `SELECT COALESCE(MAX(version_number), 0) + 1 FROM journey_versions WHERE journey_id = $1`

	err := r.db.QueryRowContext(ctx, query, journeyID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to query next version number: %w", err)
	}

	return next, nil
}

func (r *VersionRepository) scanVersion(scanner interface {
	Scan(dest ...any) error
}) (*models.JourneyVersion, error) {
	var (
		version        models.JourneyVersion
		definitionJSON []byte
	)

	err := scanner.Scan(
		&version.ID,
		&version.JourneyID,
		&version.OrganizationID,
		&version.VersionNumber,
		&definitionJSON,
		&version.PublishedAt,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(definitionJSON, &version.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}

	return &version, nil
}

package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/persistence"
)

// JourneyRepository handles journey-related database operations.
type JourneyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJourneyRepository creates a new journey repository.
func NewJourneyRepository(db *sql.DB, logger *slog.Logger) *JourneyRepository {
	return &JourneyRepository{db: db, logger: logger}
}

func (r *JourneyRepository) GetByID(ctx context.Context, id string) (*models.Journey, error) {
	query := `
		SELECT
			id
		  , organization_id
		  , name
		  , description
		  , status
		  , triggers
		  , definition
		  , settings
		  , created_at
		  , updated_at
		FROM journeys
		WHERE id = $1 AND deleted_at IS NULL
	`

	row := r.db.QueryRowContext(ctx, query, id)

	journey, err := r.scanJourney(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewJourneyError("GetByID", id, persistence.ErrJourneyNotFound)
		}

		return nil, persistence.NewJourneyError("GetByID", id, err)
	}

	return journey, nil
}

func (r *JourneyRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.Journey, error) {
	query := `
		SELECT
			id
		  , organization_id
		  , name
		  , description
		  , status
		  , triggers
		  , definition
		  , settings
		  , created_at
		  , updated_at
		FROM journeys
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journeys: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	journeys := make([]*models.Journey, 0)

	for rows.Next() {
		journey, err := r.scanJourney(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journey: %w", err)
		}

		journeys = append(journeys, journey)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating journeys: %w", err)
	}

	return journeys, nil
}

// Save upserts a journey, serializing triggers, definition, and settings as
// JSONB.
func (r *JourneyRepository) Save(ctx context.Context, journey *models.Journey) error {
	now := time.Now().UTC()

	if journey.CreatedAt.IsZero() {
		journey.CreatedAt = now
	}

	journey.UpdatedAt = now

	if journey.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate journey ID: %w", err)
		}

		journey.ID = id.String()
	}

	triggersJSON, err := json.Marshal(journey.Triggers)
	if err != nil {
		return fmt.Errorf("failed to marshal triggers: %w", err)
	}

	definitionJSON, err := json.Marshal(journey.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	settingsJSON, err := json.Marshal(journey.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `
		INSERT INTO journeys (id, organization_id, name, description, status,
triggers, definition, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			triggers = EXCLUDED.triggers,
			definition = EXCLUDED.definition,
			settings = EXCLUDED.settings,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		journey.ID,
		journey.OrganizationID,
		journey.Name,
		journey.Description,
		journey.Status,
		triggersJSON,
		definitionJSON,
		settingsJSON,
		journey.CreatedAt,
		journey.UpdatedAt,
	)
	if err != nil {
		return persistence.NewJourneyError("Save", journey.ID, err)
	}

	return nil
}

// Delete soft deletes a journey by setting deleted_at timestamp.
func (r *JourneyRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE journeys SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return persistence.NewJourneyError("Delete", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Journey doesn't exist or already deleted - this is not an error
		return nil
	}

	return nil
}

// FindTriggerConfigs unnests the triggers JSONB array of the organization's
// active journeys and returns the configs matching the given trigger type.
func (r *JourneyRepository) FindTriggerConfigs(ctx context.Context, organizationID string, triggerType models.TriggerType) ([]*models.TriggerConfigMatch, error) {
	query := `
		SELECT
			j.id AS journey_id,
			j.organization_id,
			t.value AS trigger
		FROM journeys j
		CROSS JOIN LATERAL jsonb_array_elements(j.triggers) AS t
		WHERE j.deleted_at IS NULL
		  AND j.status = 'active'
		  AND j.organization_id = $1
		  AND t.value->>'type' = $2
		ORDER BY j.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, organizationID, triggerType)
	if err != nil {
		return nil, fmt.Errorf("failed to query journey triggers: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var matches []*models.TriggerConfigMatch

	for rows.Next() {
		var (
			journeyID      string
			organizationID string
			triggerJSON    []byte
		)

		err := rows.Scan(&journeyID, &organizationID, &triggerJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger match: %w", err)
		}

		var trigger models.TriggerConfig

		err = json.Unmarshal(triggerJSON, &trigger)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger configuration: %w", err)
		}

		matches = append(matches, &models.TriggerConfigMatch{
			JourneyID:      journeyID,
			OrganizationID: organizationID,
			Trigger:        &trigger,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trigger matches: %w", err)
	}

	return matches, nil
}

func (r *JourneyRepository) scanJourney(scanner interface {
	Scan(dest ...any) error
}) (*models.Journey, error) {
	var (
		journey                                    models.Journey
		triggersJSON, definitionJSON, settingsJSON []byte
	)

	err := scanner.Scan(
		&journey.ID,
		&journey.OrganizationID,
		&journey.Name,
		&journey.Description,
		&journey.Status,
		&triggersJSON,
		&definitionJSON,
		&settingsJSON,
		&journey.CreatedAt,
		&journey.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if triggersJSON != nil {
		err := json.Unmarshal(triggersJSON, &journey.Triggers)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal triggers: %w", err)
		}
	}

	if definitionJSON != nil {
		err := json.Unmarshal(definitionJSON, &journey.Definition)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
		}
	}

	if settingsJSON != nil {
		err := json.Unmarshal(settingsJSON, &journey.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	return &journey, nil
}

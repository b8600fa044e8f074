package postgresql

// migrations returns the ordered schema migrations for the journey store.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS journeys (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL DEFAULT 'draft',
				triggers JSONB NOT NULL DEFAULT '[]',
				definition JSONB NOT NULL DEFAULT '{}',
				settings JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_journeys_organization
				ON journeys (organization_id) WHERE deleted_at IS NULL;
			CREATE INDEX IF NOT EXISTS idx_journeys_status
				ON journeys (status) WHERE deleted_at IS NULL;
			CREATE INDEX IF NOT EXISTS idx_journeys_triggers
				ON journeys USING GIN (triggers);

			CREATE TABLE IF NOT EXISTS journey_versions (
				id UUID PRIMARY KEY,
				journey_id UUID NOT NULL REFERENCES journeys(id),
				organization_id UUID NOT NULL,
				version_number INTEGER NOT NULL,
				definition JSONB NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				CONSTRAINT uq_journey_versions_number UNIQUE (journey_id, version_number)
			);

			CREATE TABLE IF NOT EXISTS journey_executions (
				id UUID PRIMARY KEY,
				journey_id UUID NOT NULL REFERENCES journeys(id),
				version_id UUID NOT NULL REFERENCES journey_versions(id),
				organization_id UUID NOT NULL,
				contact_id UUID NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'active',
				current_step_id VARCHAR(255) NOT NULL DEFAULT '',
				contact_snapshot JSONB NOT NULL DEFAULT '{}',
				failure_reason TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE UNIQUE INDEX IF NOT EXISTS uq_journey_executions_active_contact
				ON journey_executions (journey_id, contact_id) WHERE status = 'active';
			CREATE INDEX IF NOT EXISTS idx_journey_executions_contact
				ON journey_executions (journey_id, contact_id);
			CREATE INDEX IF NOT EXISTS idx_journey_executions_stale
				ON journey_executions (started_at) WHERE status = 'active';

			CREATE TABLE IF NOT EXISTS step_executions (
				id UUID PRIMARY KEY,
				execution_id UUID NOT NULL REFERENCES journey_executions(id),
				step_id VARCHAR(255) NOT NULL,
				organization_id UUID NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				result JSONB,
				error_message TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_step_executions_execution
				ON step_executions (execution_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_step_executions_pending
				ON step_executions (execution_id, step_id) WHERE status = 'pending';
		`,
	}
}

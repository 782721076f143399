package store

import "context"

// Bootstrap creates every table this runtime needs if it does not already
// exist (spec.md §6: threads, turns, messages, checkpoints, audit_log,
// tool_invocations). It is idempotent and safe to call on every process
// start, mirroring the teacher's rate-limit store's own
// "CREATE TABLE IF NOT EXISTS" bootstrap.
func (s *Store) Bootstrap(ctx context.Context) error {
	pk := autoIncrementPrimaryKey(s.dialect)
	jsonType := jsonColumnType(s.dialect)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			org_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			turn_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			input_text TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP,
			current_agent TEXT NOT NULL,
			tool_call_count INTEGER NOT NULL DEFAULT 0,
			final_answer TEXT,
			rating TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id ` + pk + `,
			thread_id TEXT NOT NULL,
			turn_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_name TEXT,
			tool_args ` + jsonType + `,
			tool_call_id TEXT,
			reasoning_trace ` + jsonType + `,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT NOT NULL,
			turn_id TEXT NOT NULL,
			step_index BIGINT NOT NULL,
			state_snapshot ` + jsonType + ` NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (thread_id, turn_id)
		)`,
		`CREATE TABLE IF NOT EXISTS tool_invocations (
			id ` + pk + `,
			turn_id TEXT NOT NULL,
			tool_call_id TEXT NOT NULL,
			name TEXT NOT NULL,
			args ` + jsonType + `,
			result ` + jsonType + `,
			error TEXT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			UNIQUE (turn_id, tool_call_id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id ` + pk + `,
			thread_id TEXT NOT NULL,
			turn_id TEXT,
			event_type TEXT NOT NULL,
			payload ` + jsonType + `,
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

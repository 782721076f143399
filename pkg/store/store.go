package store

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/model"
)

// Store is the shared relational handle for all runtime persistence.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens a database/sql connection for dialect against dsn and verifies
// it with a ping. driverName must be the database/sql driver registered for
// dialect; the imported drivers register "postgres", "mysql" and "sqlite3",
// the same strings as the Dialect values.
func Open(dialect Dialect, driverName, dsn string) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "open %s store", dialect)
	}
	if err := db.Ping(); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "ping %s store", dialect)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying connection pool for callers (e.g. pkg/rag's
// structured-query fusion) that need to manage their own tables against the
// same database rather than duplicating connection setup.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the SQL dialect this store was opened with.
func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) query(q string) string { return rebind(s.dialect, q) }

// Rebind rewrites a `?`-placeholder query for this store's dialect, exposed
// for callers building their own parameterized queries against DB().
func (s *Store) Rebind(q string) string { return rebind(s.dialect, q) }

// CreateThread inserts a new thread row.
func (s *Store) CreateThread(ctx context.Context, th model.Thread) error {
	_, err := s.db.ExecContext(ctx, s.query(
		`INSERT INTO threads (thread_id, user_id, org_id, status, created_at) VALUES (?, ?, ?, ?, ?)`),
		th.ThreadID, th.UserContext.UserID, th.UserContext.OrgID, th.Status, th.CreatedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "create thread %q", th.ThreadID)
	}
	return nil
}

// GetThread loads a thread by ID.
func (s *Store) GetThread(ctx context.Context, threadID string) (model.Thread, error) {
	row := s.db.QueryRowContext(ctx, s.query(
		`SELECT thread_id, user_id, org_id, status, created_at FROM threads WHERE thread_id = ?`), threadID)

	var th model.Thread
	if err := row.Scan(&th.ThreadID, &th.UserContext.UserID, &th.UserContext.OrgID, &th.Status, &th.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return th, apperr.New(apperr.KindOperationUnsupported, "thread %q not found", threadID)
		}
		return th, apperr.Wrap(apperr.KindInternal, err, "get thread %q", threadID)
	}
	return th, nil
}

// UpdateThreadStatus transitions a thread's lifecycle status.
func (s *Store) UpdateThreadStatus(ctx context.Context, threadID string, status model.ThreadStatus) error {
	_, err := s.db.ExecContext(ctx, s.query(`UPDATE threads SET status = ? WHERE thread_id = ?`), status, threadID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "update thread %q status", threadID)
	}
	return nil
}

// ListThreadsByStatus returns every thread in the given lifecycle status,
// used by pkg/checkpoint to find interrupted threads eligible for resume
// on startup.
func (s *Store) ListThreadsByStatus(ctx context.Context, status model.ThreadStatus) ([]model.Thread, error) {
	rows, err := s.db.QueryContext(ctx, s.query(
		`SELECT thread_id, user_id, org_id, status, created_at FROM threads WHERE status = ?`), status)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list threads by status %q", status)
	}
	defer rows.Close()

	var out []model.Thread
	for rows.Next() {
		var th model.Thread
		if err := rows.Scan(&th.ThreadID, &th.UserContext.UserID, &th.UserContext.OrgID, &th.Status, &th.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "scan thread row")
		}
		out = append(out, th)
	}
	return out, rows.Err()
}

// CreateTurn inserts a new turn row.
func (s *Store) CreateTurn(ctx context.Context, t model.Turn) error {
	_, err := s.db.ExecContext(ctx, s.query(
		`INSERT INTO turns (turn_id, thread_id, input_text, started_at, current_agent, tool_call_count)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		t.TurnID, t.ThreadID, t.InputText, t.StartedAt, t.CurrentAgent, t.ToolCallCount)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "create turn %q", t.TurnID)
	}
	return nil
}

// UpdateTurn persists the turn's terminal fields (final answer, rating,
// end time, tool call count, current agent) after each step.
func (s *Store) UpdateTurn(ctx context.Context, t model.Turn) error {
	_, err := s.db.ExecContext(ctx, s.query(
		`UPDATE turns SET current_agent = ?, tool_call_count = ?, final_answer = ?, ended_at = ?, rating = ?
		 WHERE turn_id = ?`),
		t.CurrentAgent, t.ToolCallCount, t.FinalAnswer, t.EndedAt, t.Rating, t.TurnID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "update turn %q", t.TurnID)
	}
	return nil
}

// GetTurn loads a turn by ID.
func (s *Store) GetTurn(ctx context.Context, turnID string) (model.Turn, error) {
	row := s.db.QueryRowContext(ctx, s.query(
		`SELECT turn_id, thread_id, input_text, started_at, ended_at, current_agent, tool_call_count, final_answer, rating
		 FROM turns WHERE turn_id = ?`), turnID)

	var t model.Turn
	if err := row.Scan(&t.TurnID, &t.ThreadID, &t.InputText, &t.StartedAt, &t.EndedAt, &t.CurrentAgent, &t.ToolCallCount, &t.FinalAnswer, &t.Rating); err != nil {
		if err == sql.ErrNoRows {
			return t, apperr.New(apperr.KindOperationUnsupported, "turn %q not found", turnID)
		}
		return t, apperr.Wrap(apperr.KindInternal, err, "get turn %q", turnID)
	}
	return t, nil
}

// ListTurnsByThread returns a thread's turns in chronological order, most
// recent limit (0 means unlimited) — backs `GET /v1/threads/{thread_id}`'s
// "last-N turns" (spec.md §6).
func (s *Store) ListTurnsByThread(ctx context.Context, threadID string, limit int) ([]model.Turn, error) {
	q := `SELECT turn_id, thread_id, input_text, started_at, ended_at, current_agent, tool_call_count, final_answer, rating
		  FROM turns WHERE thread_id = ? ORDER BY started_at DESC`
	args := []any{threadID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.query(q), args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list turns for thread %q", threadID)
	}
	defer rows.Close()

	var out []model.Turn
	for rows.Next() {
		var t model.Turn
		if err := rows.Scan(&t.TurnID, &t.ThreadID, &t.InputText, &t.StartedAt, &t.EndedAt, &t.CurrentAgent, &t.ToolCallCount, &t.FinalAnswer, &t.Rating); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "scan turn row")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Rows arrive most-recent-first (for LIMIT to keep the latest N);
	// reverse so callers see chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SetTurnRating records the user's quality signal (spec.md §6 supplemented
// rating endpoint).
func (s *Store) SetTurnRating(ctx context.Context, turnID string, rating model.Rating) error {
	_, err := s.db.ExecContext(ctx, s.query(`UPDATE turns SET rating = ? WHERE turn_id = ?`), rating, turnID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "set rating on turn %q", turnID)
	}
	return nil
}

// AppendMessage inserts one message at the sequence number set in m.Seq.
func (s *Store) AppendMessage(ctx context.Context, m model.Message) error {
	toolArgs, err := json.Marshal(m.ToolArgs)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "marshal tool args")
	}
	trace, err := json.Marshal(m.ReasoningTrace)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "marshal reasoning trace")
	}

	_, err = s.db.ExecContext(ctx, s.query(
		`INSERT INTO messages (thread_id, turn_id, seq, role, content, tool_name, tool_args, tool_call_id, reasoning_trace, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ThreadID, m.TurnID, m.Seq, m.Role, m.Content, m.ToolName, string(toolArgs), m.ToolCallID, string(trace), m.CreatedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "append message to turn %q", m.TurnID)
	}
	return nil
}

// ListMessages returns every message for a turn in sequence order.
func (s *Store) ListMessages(ctx context.Context, turnID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.query(
		`SELECT thread_id, turn_id, seq, role, content, tool_name, tool_args, tool_call_id, reasoning_trace, created_at
		 FROM messages WHERE turn_id = ? ORDER BY seq ASC`), turnID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list messages for turn %q", turnID)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var toolName, toolCallID sql.NullString
		var toolArgs, trace string
		if err := rows.Scan(&m.ThreadID, &m.TurnID, &m.Seq, &m.Role, &m.Content, &toolName, &toolArgs, &toolCallID, &trace, &m.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "scan message row")
		}
		m.ToolName = toolName.String
		m.ToolCallID = toolCallID.String
		_ = json.Unmarshal([]byte(toolArgs), &m.ToolArgs)
		_ = json.Unmarshal([]byte(trace), &m.ReasoningTrace)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveCheckpoint writes or replaces the checkpoint for (thread_id, turn_id),
// enforcing compare-and-swap on step_index: the write is rejected if a
// checkpoint with a step_index >= cp.StepIndex already exists, so a stale
// writer (e.g. a crashed-and-restarted worker that didn't see a later step)
// can never clobber newer state (spec.md §5, §7 apperr.KindCheckpointConflict).
func (s *Store) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "begin checkpoint transaction")
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, s.query(
		`SELECT step_index FROM checkpoints WHERE thread_id = ? AND turn_id = ?`), cp.ThreadID, cp.TurnID).Scan(&existing)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, s.query(
			`INSERT INTO checkpoints (thread_id, turn_id, step_index, state_snapshot, created_at) VALUES (?, ?, ?, ?, ?)`),
			cp.ThreadID, cp.TurnID, cp.StepIndex, cp.StateSnapshot, cp.CreatedAt)
	case err != nil:
		return apperr.Wrap(apperr.KindInternal, err, "read existing checkpoint")
	case existing >= cp.StepIndex:
		return apperr.New(apperr.KindCheckpointConflict, "checkpoint step_index %d superseded by existing step_index %d", cp.StepIndex, existing)
	default:
		_, err = tx.ExecContext(ctx, s.query(
			`UPDATE checkpoints SET step_index = ?, state_snapshot = ?, created_at = ? WHERE thread_id = ? AND turn_id = ?`),
			cp.StepIndex, cp.StateSnapshot, cp.CreatedAt, cp.ThreadID, cp.TurnID)
	}

	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "write checkpoint")
	}
	return tx.Commit()
}

// LoadCheckpoint returns the latest checkpoint for (thread_id, turn_id).
func (s *Store) LoadCheckpoint(ctx context.Context, threadID, turnID string) (model.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, s.query(
		`SELECT thread_id, turn_id, step_index, state_snapshot, created_at FROM checkpoints WHERE thread_id = ? AND turn_id = ?`),
		threadID, turnID)

	var cp model.Checkpoint
	if err := row.Scan(&cp.ThreadID, &cp.TurnID, &cp.StepIndex, &cp.StateSnapshot, &cp.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return cp, apperr.New(apperr.KindOperationUnsupported, "no checkpoint for thread %q turn %q", threadID, turnID)
		}
		return cp, apperr.Wrap(apperr.KindInternal, err, "load checkpoint")
	}
	return cp, nil
}

// LoadLatestCheckpointForThread returns the most recently written checkpoint
// across all turns of threadID, used by pkg/checkpoint to resume a thread
// without already knowing which turn was interrupted.
func (s *Store) LoadLatestCheckpointForThread(ctx context.Context, threadID string) (model.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, s.query(
		`SELECT thread_id, turn_id, step_index, state_snapshot, created_at FROM checkpoints
		 WHERE thread_id = ? ORDER BY created_at DESC LIMIT 1`), threadID)

	var cp model.Checkpoint
	if err := row.Scan(&cp.ThreadID, &cp.TurnID, &cp.StepIndex, &cp.StateSnapshot, &cp.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return cp, apperr.New(apperr.KindOperationUnsupported, "no checkpoint for thread %q", threadID)
		}
		return cp, apperr.Wrap(apperr.KindInternal, err, "load latest checkpoint for thread %q", threadID)
	}
	return cp, nil
}

// RecordToolInvocation inserts the result of a tool call, keyed by
// (turn_id, tool_call_id) so replay on resume is idempotent: a tool call
// already recorded here is never re-executed (spec.md §5). Recording the
// same key a second time fails on the table's unique constraint.
func (s *Store) RecordToolInvocation(ctx context.Context, turnID string, call model.RecordedToolCall) error {
	args, err := json.Marshal(call.Args)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "marshal tool args")
	}
	result, err := json.Marshal(call.Result)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "marshal tool result")
	}

	_, err = s.db.ExecContext(ctx, s.query(
		`INSERT INTO tool_invocations (turn_id, tool_call_id, name, args, result, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		turnID, call.ToolCallID, call.Name, string(args), string(result), call.Error, call.StartedAt, call.FinishedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "record tool invocation %q", call.ToolCallID)
	}
	return nil
}

// FindToolInvocation looks up a previously recorded tool call by
// (turn_id, tool_call_id); ok is false if none was recorded yet.
func (s *Store) FindToolInvocation(ctx context.Context, turnID, toolCallID string) (call model.RecordedToolCall, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, s.query(
		`SELECT tool_call_id, name, args, result, error, started_at, finished_at
		 FROM tool_invocations WHERE turn_id = ? AND tool_call_id = ?`), turnID, toolCallID)

	var args, result string
	var finishedAt sql.NullTime
	scanErr := row.Scan(&call.ToolCallID, &call.Name, &args, &result, &call.Error, &call.StartedAt, &finishedAt)
	if scanErr == sql.ErrNoRows {
		return call, false, nil
	}
	if scanErr != nil {
		return call, false, apperr.Wrap(apperr.KindInternal, scanErr, "find tool invocation")
	}
	if finishedAt.Valid {
		call.FinishedAt = finishedAt.Time
	}
	_ = json.Unmarshal([]byte(args), &call.Args)
	_ = json.Unmarshal([]byte(result), &call.Result)
	return call, true, nil
}

// AppendAuditEvent inserts one audit record. Callers (pkg/audit) treat
// failures here as non-fatal to the turn in progress.
func (s *Store) AppendAuditEvent(ctx context.Context, ev model.AuditEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "marshal audit payload")
	}

	_, err = s.db.ExecContext(ctx, s.query(
		`INSERT INTO audit_log (thread_id, turn_id, event_type, payload, created_at) VALUES (?, ?, ?, ?, ?)`),
		ev.ThreadID, ev.TurnID, ev.EventType, string(payload), ev.CreatedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "append audit event")
	}
	return nil
}

// ListAuditEvents returns every audit record for a thread in insertion order.
func (s *Store) ListAuditEvents(ctx context.Context, threadID string) ([]model.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.query(
		`SELECT thread_id, turn_id, event_type, payload, created_at FROM audit_log WHERE thread_id = ? ORDER BY id ASC`), threadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list audit events for thread %q", threadID)
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var turnID sql.NullString
		var payload string
		if err := rows.Scan(&ev.ThreadID, &turnID, &ev.EventType, &payload, &ev.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "scan audit row")
		}
		ev.TurnID = turnID.String
		_ = json.Unmarshal([]byte(payload), &ev.Payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS suppliers (
			supplier_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			contact_email TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN',
			last_contact_at DATETIME,
			summary TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			conv_id TEXT PRIMARY KEY,
			supplier_id TEXT NOT NULL,
			state TEXT NOT NULL,
			last_updated DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (supplier_id) REFERENCES suppliers(supplier_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_supplier ON conversations(supplier_id, last_updated)`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			turn_id TEXT NOT NULL UNIQUE,
			conv_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			sent_at DATETIME NOT NULL,
			meta TEXT,
			FOREIGN KEY (conv_id) REFERENCES conversations(conv_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_conv ON conversation_turns(conv_id, sent_at, seq)`,
		`CREATE TABLE IF NOT EXISTS evaluations (
			eval_id TEXT PRIMARY KEY,
			conv_id TEXT NOT NULL,
			turn_id TEXT NOT NULL,
			judge_prompt_version TEXT NOT NULL,
			scores_json TEXT NOT NULL,
			comments TEXT,
			blocked INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			UNIQUE (turn_id, judge_prompt_version),
			FOREIGN KEY (conv_id) REFERENCES conversations(conv_id)
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id TEXT PRIMARY KEY,
			supplier_id TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			version TEXT NOT NULL,
			doc_date TEXT,
			summary TEXT,
			storage_path TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (supplier_id) REFERENCES suppliers(supplier_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_supplier ON documents(supplier_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			conv_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_content TEXT NOT NULL,
			outcome TEXT NOT NULL,
			steps TEXT,
			error TEXT,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			FOREIGN KEY (conv_id) REFERENCES conversations(conv_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_conv ON runs(conv_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS run_events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSupplier creates a new supplier.
func (s *SQLiteStore) CreateSupplier(ctx context.Context, supplier *domain.Supplier) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suppliers (supplier_id, name, contact_email, status, last_contact_at, summary, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		supplier.SupplierID, supplier.Name, supplier.ContactEmail, supplier.Status, supplier.LastContactAt, supplier.Summary, supplier.CreatedAt)
	return err
}

// GetSupplier retrieves a supplier by ID.
func (s *SQLiteStore) GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT supplier_id, name, contact_email, status, last_contact_at, summary, created_at FROM suppliers WHERE supplier_id = ?`,
		supplierID)
	supplier, err := scanSupplier(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return supplier, nil
}

// ListSuppliers lists all suppliers.
func (s *SQLiteStore) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT supplier_id, name, contact_email, status, last_contact_at, summary, created_at FROM suppliers ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suppliers []domain.Supplier
	for rows.Next() {
		supplier, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, *supplier)
	}
	return suppliers, rows.Err()
}

// UpdateSupplierAfterRun updates the orchestrator-owned supplier fields.
// Summary is left unchanged when empty.
func (s *SQLiteStore) UpdateSupplierAfterRun(ctx context.Context, supplierID string, status domain.SupplierStatus, summary string, lastContactAt time.Time) error {
	if summary == "" {
		_, err := s.db.ExecContext(ctx,
			`UPDATE suppliers SET status = ?, last_contact_at = ? WHERE supplier_id = ?`,
			status, lastContactAt, supplierID)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE suppliers SET status = ?, summary = ?, last_contact_at = ? WHERE supplier_id = ?`,
		status, summary, lastContactAt, supplierID)
	return err
}

// CreateConversation creates a new conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conv_id, supplier_id, state, last_updated, created_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ConvID, conv.SupplierID, conv.State, conv.LastUpdated, conv.CreatedAt)
	return err
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, convID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT conv_id, supplier_id, state, last_updated, created_at FROM conversations WHERE conv_id = ?`,
		convID).Scan(&conv.ConvID, &conv.SupplierID, &conv.State, &conv.LastUpdated, &conv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations lists all conversations.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conv_id, supplier_id, state, last_updated, created_at FROM conversations ORDER BY last_updated DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(&conv.ConvID, &conv.SupplierID, &conv.State, &conv.LastUpdated, &conv.CreatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// UpdateConversationState updates the state of a conversation.
func (s *SQLiteStore) UpdateConversationState(ctx context.Context, convID string, state domain.ConversationState, lastUpdated time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET state = ?, last_updated = ? WHERE conv_id = ?`,
		state, lastUpdated, convID)
	return err
}

// AppendTurn inserts a turn and assigns its sequence number.
func (s *SQLiteStore) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	meta := ""
	if turn.Meta != nil {
		meta = string(turn.Meta)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_turns (turn_id, conv_id, role, content, sent_at, meta) VALUES (?, ?, ?, ?, ?, ?)`,
		turn.TurnID, turn.ConvID, turn.Role, turn.Content, turn.SentAt, meta)
	if err != nil {
		return err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	turn.Seq = seq
	return nil
}

// GetTurns retrieves the turns of a conversation in total order.
func (s *SQLiteStore) GetTurns(ctx context.Context, convID string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, turn_id, conv_id, role, content, sent_at, meta FROM conversation_turns WHERE conv_id = ? ORDER BY sent_at ASC, seq ASC`,
		convID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, *turn)
	}
	return turns, rows.Err()
}

// GetTurn retrieves a single turn by ID.
func (s *SQLiteStore) GetTurn(ctx context.Context, turnID string) (*domain.Turn, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, turn_id, conv_id, role, content, sent_at, meta FROM conversation_turns WHERE turn_id = ?`,
		turnID)
	turn, err := scanTurn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return turn, nil
}

// LatestTurn retrieves the most recent turn of a conversation, or nil.
func (s *SQLiteStore) LatestTurn(ctx context.Context, convID string) (*domain.Turn, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, turn_id, conv_id, role, content, sent_at, meta FROM conversation_turns WHERE conv_id = ? ORDER BY sent_at DESC, seq DESC LIMIT 1`,
		convID)
	turn, err := scanTurn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return turn, nil
}

// CreateEvaluation inserts an evaluation row.
func (s *SQLiteStore) CreateEvaluation(ctx context.Context, eval *domain.Evaluation) error {
	scores, err := json.Marshal(eval.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluations (eval_id, conv_id, turn_id, judge_prompt_version, scores_json, comments, blocked, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		eval.EvalID, eval.ConvID, eval.TurnID, eval.JudgePromptVersion, string(scores), eval.Comments, eval.Blocked, eval.CreatedAt)
	return err
}

// GetEvaluationByTurnVersion retrieves the evaluation for a (turn, version) pair.
func (s *SQLiteStore) GetEvaluationByTurnVersion(ctx context.Context, turnID, judgePromptVersion string) (*domain.Evaluation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT eval_id, conv_id, turn_id, judge_prompt_version, scores_json, comments, blocked, created_at
		 FROM evaluations WHERE turn_id = ? AND judge_prompt_version = ?`,
		turnID, judgePromptVersion)
	eval, err := scanEvaluation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return eval, nil
}

// ListEvaluations lists evaluations whose judged turn still exists. Orphaned
// rows are invalid on read and never returned.
func (s *SQLiteStore) ListEvaluations(ctx context.Context) ([]domain.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.eval_id, e.conv_id, e.turn_id, e.judge_prompt_version, e.scores_json, e.comments, e.blocked, e.created_at
		 FROM evaluations e
		 INNER JOIN conversation_turns t ON t.turn_id = e.turn_id
		 ORDER BY e.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []domain.Evaluation
	for rows.Next() {
		eval, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, *eval)
	}
	return evals, rows.Err()
}

// CreateDocument inserts a document.
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (doc_id, supplier_id, doc_type, version, doc_date, summary, storage_path, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.DocID, doc.SupplierID, doc.DocType, doc.Version, doc.DocDate, doc.Summary, doc.StoragePath, doc.CreatedAt)
	return err
}

// ListDocuments lists all documents.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, supplier_id, doc_type, version, doc_date, summary, storage_path, created_at FROM documents ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// ListDocumentsBySupplier lists a supplier's documents, newest first.
func (s *SQLiteStore) ListDocumentsBySupplier(ctx context.Context, supplierID string, limit int) ([]domain.Document, error) {
	query := `SELECT doc_id, supplier_id, doc_type, version, doc_date, summary, storage_path, created_at FROM documents WHERE supplier_id = ? ORDER BY created_at DESC`
	args := []interface{}{supplierID}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// CreateRun creates a new run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, conv_id, event_type, event_content, outcome, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.ConvID, run.EventType, run.EventContent, run.Outcome, run.StartedAt)
	return err
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	var steps, errData sql.NullString
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, conv_id, event_type, event_content, outcome, steps, error, started_at, ended_at FROM runs WHERE run_id = ?`,
		runID).Scan(&run.RunID, &run.ConvID, &run.EventType, &run.EventContent, &run.Outcome, &steps, &errData, &run.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if steps.Valid {
		run.Steps = json.RawMessage(steps.String)
	}
	if errData.Valid {
		run.Error = json.RawMessage(errData.String)
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	return &run, nil
}

// UpdateRunCompleted finalizes a run record.
func (s *SQLiteStore) UpdateRunCompleted(ctx context.Context, runID string, outcome domain.RunOutcome, steps []byte, errData []byte) error {
	now := time.Now()
	var stepsStr, errStr sql.NullString
	if steps != nil {
		stepsStr = sql.NullString{String: string(steps), Valid: true}
	}
	if errData != nil {
		errStr = sql.NullString{String: string(errData), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET outcome = ?, steps = ?, error = ?, ended_at = ? WHERE run_id = ?`,
		outcome, stepsStr, errStr, now, runID)
	return err
}

// CreateRunEvent creates a new run trace event.
func (s *SQLiteStore) CreateRunEvent(ctx context.Context, event *domain.RunEvent) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events (event_id, run_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Ts, event.Type, payload)
	return err
}

// GetRunEvents retrieves trace events for a run.
func (s *SQLiteStore) GetRunEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.RunEvent, error) {
	query := `SELECT event_id, run_id, ts, type, payload FROM run_events WHERE run_id = ?`
	args := []interface{}{runID}
	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}
	query += ` ORDER BY ts ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.RunEvent
	for rows.Next() {
		var event domain.RunEvent
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.RunID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSupplier(row rowScanner) (*domain.Supplier, error) {
	var supplier domain.Supplier
	var lastContact sql.NullTime
	var summary sql.NullString
	if err := row.Scan(&supplier.SupplierID, &supplier.Name, &supplier.ContactEmail, &supplier.Status, &lastContact, &summary, &supplier.CreatedAt); err != nil {
		return nil, err
	}
	if lastContact.Valid {
		supplier.LastContactAt = &lastContact.Time
	}
	if summary.Valid {
		supplier.Summary = summary.String
	}
	return &supplier, nil
}

func scanTurn(row rowScanner) (*domain.Turn, error) {
	var turn domain.Turn
	var meta sql.NullString
	if err := row.Scan(&turn.Seq, &turn.TurnID, &turn.ConvID, &turn.Role, &turn.Content, &turn.SentAt, &meta); err != nil {
		return nil, err
	}
	if meta.Valid && meta.String != "" {
		turn.Meta = json.RawMessage(meta.String)
	}
	return &turn, nil
}

func scanEvaluation(row rowScanner) (*domain.Evaluation, error) {
	var eval domain.Evaluation
	var scores string
	var comments sql.NullString
	if err := row.Scan(&eval.EvalID, &eval.ConvID, &eval.TurnID, &eval.JudgePromptVersion, &scores, &comments, &eval.Blocked, &eval.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(scores), &eval.Scores); err != nil {
		return nil, fmt.Errorf("corrupt scores_json for %s: %w", eval.EvalID, err)
	}
	if comments.Valid {
		eval.Comments = comments.String
	}
	return &eval, nil
}

func collectDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		var docDate, summary, storagePath sql.NullString
		if err := rows.Scan(&doc.DocID, &doc.SupplierID, &doc.DocType, &doc.Version, &docDate, &summary, &storagePath, &doc.CreatedAt); err != nil {
			return nil, err
		}
		if docDate.Valid {
			doc.DocDate = docDate.String
		}
		if summary.Valid {
			doc.Summary = summary.String
		}
		if storagePath.Valid {
			doc.StoragePath = storagePath.String
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/terra-clan/caseprep/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	// Set pool configuration
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25 // default
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5 // default
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the connection pool for migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// --- Cases ---

const caseColumns = `id, title, prompt, context, exhibits, case_type, source, created_by, created_at`

// CreateCase inserts a new case
func (r *PostgresRepository) CreateCase(ctx context.Context, c *models.Case) error {
	return r.writeCase(ctx, c, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
}

// UpsertCase inserts a case or replaces the stored version with the same ID
func (r *PostgresRepository) UpsertCase(ctx context.Context, c *models.Case) error {
	return r.writeCase(ctx, c, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, prompt = EXCLUDED.prompt, context = EXCLUDED.context,
		    exhibits = EXCLUDED.exhibits, case_type = EXCLUDED.case_type, source = EXCLUDED.source
	`)
}

func (r *PostgresRepository) writeCase(ctx context.Context, c *models.Case, query string) error {
	contextJSON, err := json.Marshal(lo.Ternary(c.Context != nil, c.Context, map[string]string{}))
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	exhibitsJSON, err := json.Marshal(lo.Ternary(c.Exhibits != nil, c.Exhibits, []models.Exhibit{}))
	if err != nil {
		return fmt.Errorf("failed to marshal exhibits: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		c.ID,
		c.Title,
		c.Prompt,
		contextJSON,
		exhibitsJSON,
		string(c.CaseType),
		nullString(c.Source),
		nullString(c.CreatedBy),
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write case: %w", err)
	}

	return nil
}

// GetCase retrieves a case by ID
func (r *PostgresRepository) GetCase(ctx context.Context, id string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`

	c, err := scanCase(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	return c, nil
}

// ListCases returns cases with optional type filter, newest first
func (r *PostgresRepository) ListCases(ctx context.Context, filters models.CaseFilters) ([]*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE 1=1`
	args := make([]any, 0)
	argNum := 1

	if filters.CaseType != "" {
		query += fmt.Sprintf(" AND case_type = $%d", argNum)
		args = append(args, string(filters.CaseType))
		argNum++
	}

	query += " ORDER BY created_at DESC"
	query, args = paginate(query, args, argNum, filters.Limit, filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

func scanCase(row scanner) (*models.Case, error) {
	var c models.Case
	var caseType string
	var source, createdBy sql.NullString
	var contextJSON, exhibitsJSON []byte

	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Prompt,
		&contextJSON,
		&exhibitsJSON,
		&caseType,
		&source,
		&createdBy,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.CaseType = models.CaseType(caseType)
	c.Source = source.String
	c.CreatedBy = createdBy.String

	if contextJSON != nil {
		if err := json.Unmarshal(contextJSON, &c.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
	}
	if exhibitsJSON != nil {
		if err := json.Unmarshal(exhibitsJSON, &c.Exhibits); err != nil {
			return nil, fmt.Errorf("failed to unmarshal exhibits: %w", err)
		}
	}

	return &c, nil
}

// --- Sessions ---

const sessionColumns = `id, token, case_id, mode, status, current_phase, exhibits_released, created_by, created_at, updated_at, started_at, completed_at`

// CreateSession creates a new interview session record
func (r *PostgresRepository) CreateSession(ctx context.Context, s *models.InterviewSession) error {
	query := `
		INSERT INTO interview_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Token,
		nullString(s.CaseID),
		string(s.Mode),
		string(s.Status),
		s.CurrentPhase,
		toInt32s(s.ExhibitsReleased),
		nullString(s.CreatedBy),
		s.CreatedAt,
		s.UpdatedAt,
		nullTime(s.StartedAt),
		nullTime(s.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSessionByToken retrieves a session by its join token
func (r *PostgresRepository) GetSessionByToken(ctx context.Context, token string) (*models.InterviewSession, error) {
	return r.getSession(ctx, "token", token)
}

// GetSessionByID retrieves a session by its ID
func (r *PostgresRepository) GetSessionByID(ctx context.Context, id string) (*models.InterviewSession, error) {
	return r.getSession(ctx, "id", id)
}

func (r *PostgresRepository) getSession(ctx context.Context, field, value string) (*models.InterviewSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM interview_sessions WHERE %s = $1`, sessionColumns, field)

	s, err := scanSession(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return s, nil
}

// UpdateSession updates the mutable fields of a session
func (r *PostgresRepository) UpdateSession(ctx context.Context, s *models.InterviewSession) error {
	result, err := r.pool.Exec(ctx, updateSessionQuery, sessionUpdateArgs(s)...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", s.ID)
	}

	return nil
}

const updateSessionQuery = `
	UPDATE interview_sessions
	SET status = $2, current_phase = $3, exhibits_released = $4, updated_at = $5, started_at = $6, completed_at = $7
	WHERE id = $1
`

func sessionUpdateArgs(s *models.InterviewSession) []any {
	return []any{
		s.ID,
		string(s.Status),
		s.CurrentPhase,
		toInt32s(s.ExhibitsReleased),
		s.UpdatedAt,
		nullTime(s.StartedAt),
		nullTime(s.CompletedAt),
	}
}

// DeleteSession deletes a session and, by cascade, its messages and evaluation
func (r *PostgresRepository) DeleteSession(ctx context.Context, id string) error {
	query := `DELETE FROM interview_sessions WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", id)
	}

	return nil
}

// ListSessions returns sessions with optional status and case filters
func (r *PostgresRepository) ListSessions(ctx context.Context, filters models.SessionFilters) ([]*models.InterviewSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM interview_sessions WHERE 1=1`
	args := make([]any, 0)
	argNum := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	if filters.CaseID != "" {
		query += fmt.Sprintf(" AND case_id = $%d", argNum)
		args = append(args, filters.CaseID)
		argNum++
	}

	query += " ORDER BY created_at DESC"
	query, args = paginate(query, args, argNum, filters.Limit, filters.Offset)

	return r.querySessions(ctx, query, args...)
}

// GetStaleSessions returns in-progress sessions with no activity since idleSince
func (r *PostgresRepository) GetStaleSessions(ctx context.Context, idleSince time.Time) ([]*models.InterviewSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM interview_sessions
		WHERE status = 'in_progress'
		  AND updated_at < $1
		ORDER BY updated_at ASC
	`

	return r.querySessions(ctx, query, idleSince)
}

func (r *PostgresRepository) querySessions(ctx context.Context, query string, args ...any) ([]*models.InterviewSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.InterviewSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func scanSession(row scanner) (*models.InterviewSession, error) {
	var s models.InterviewSession
	var mode, status string
	var caseID, createdBy sql.NullString
	var startedAt, completedAt sql.NullTime
	var released []int32

	err := row.Scan(
		&s.ID,
		&s.Token,
		&caseID,
		&mode,
		&status,
		&s.CurrentPhase,
		&released,
		&createdBy,
		&s.CreatedAt,
		&s.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	s.CaseID = caseID.String
	s.Mode = models.InterviewMode(mode)
	s.Status = models.SessionStatus(status)
	s.CreatedBy = createdBy.String
	s.ExhibitsReleased = lo.Map(released, func(v int32, _ int) int { return int(v) })

	if startedAt.Valid {
		s.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}

	return &s, nil
}

// --- Messages ---

// AppendMessage appends to a session's chat log and fills in ID and CreatedAt
func (r *PostgresRepository) AppendMessage(ctx context.Context, m *models.Message) error {
	err := r.pool.QueryRow(ctx, insertMessageQuery, m.SessionID, string(m.Role), m.Content).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	return nil
}

const insertMessageQuery = `
	INSERT INTO messages (session_id, role, content)
	VALUES ($1, $2, $3)
	RETURNING id, created_at
`

// RecordTurn appends the turn's messages and saves the session in one transaction
func (r *PostgresRepository) RecordTurn(ctx context.Context, s *models.InterviewSession, msgs ...*models.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin turn transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range msgs {
		if err := tx.QueryRow(ctx, insertMessageQuery, m.SessionID, string(m.Role), m.Content).Scan(&m.ID, &m.CreatedAt); err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}

	result, err := tx.Exec(ctx, updateSessionQuery, sessionUpdateArgs(s)...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", s.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

// ListMessages returns a session's chat log in insertion order
func (r *PostgresRepository) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	query := `
		SELECT id, session_id, role, content, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = models.MessageRole(role)
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// --- Evaluations ---

// SaveEvaluation stores the evaluation of a session, replacing any previous one
func (r *PostgresRepository) SaveEvaluation(ctx context.Context, e *models.Evaluation) error {
	strengthsJSON, err := json.Marshal(lo.Ternary(e.Strengths != nil, e.Strengths, []string{}))
	if err != nil {
		return fmt.Errorf("failed to marshal strengths: %w", err)
	}

	areasJSON, err := json.Marshal(lo.Ternary(e.AreasForImprovement != nil, e.AreasForImprovement, []string{}))
	if err != nil {
		return fmt.Errorf("failed to marshal areas for improvement: %w", err)
	}

	query := `
		INSERT INTO evaluations (session_id, structure_score, hypothesis_score, math_score, insight_score, overall_score,
		                         strengths, areas_for_improvement, detailed_analysis)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE
		SET structure_score = EXCLUDED.structure_score, hypothesis_score = EXCLUDED.hypothesis_score,
		    math_score = EXCLUDED.math_score, insight_score = EXCLUDED.insight_score,
		    overall_score = EXCLUDED.overall_score, strengths = EXCLUDED.strengths,
		    areas_for_improvement = EXCLUDED.areas_for_improvement, detailed_analysis = EXCLUDED.detailed_analysis,
		    created_at = NOW()
		RETURNING id, created_at
	`

	err = r.pool.QueryRow(ctx, query,
		e.SessionID,
		e.StructureScore,
		e.HypothesisScore,
		e.MathScore,
		e.InsightScore,
		e.OverallScore,
		strengthsJSON,
		areasJSON,
		e.DetailedAnalysis,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}

	return nil
}

// GetEvaluation retrieves the evaluation of a session
func (r *PostgresRepository) GetEvaluation(ctx context.Context, sessionID string) (*models.Evaluation, error) {
	query := `
		SELECT id, session_id, structure_score, hypothesis_score, math_score, insight_score, overall_score,
		       strengths, areas_for_improvement, detailed_analysis, created_at
		FROM evaluations
		WHERE session_id = $1
	`

	var e models.Evaluation
	var strengthsJSON, areasJSON []byte

	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&e.ID,
		&e.SessionID,
		&e.StructureScore,
		&e.HypothesisScore,
		&e.MathScore,
		&e.InsightScore,
		&e.OverallScore,
		&strengthsJSON,
		&areasJSON,
		&e.DetailedAnalysis,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	if err := json.Unmarshal(strengthsJSON, &e.Strengths); err != nil {
		return nil, fmt.Errorf("failed to unmarshal strengths: %w", err)
	}
	if err := json.Unmarshal(areasJSON, &e.AreasForImprovement); err != nil {
		return nil, fmt.Errorf("failed to unmarshal areas for improvement: %w", err)
	}

	return &e, nil
}

// SaveFeedback stores the coaching feedback of a session, replacing any previous one
func (r *PostgresRepository) SaveFeedback(ctx context.Context, f *models.Feedback) error {
	lists := make([][]byte, 0, 4)
	for _, list := range [][]string{f.Strengths, f.AreasForImprovement, f.Recommendations, f.NextSteps} {
		raw, err := json.Marshal(lo.Ternary(list != nil, list, []string{}))
		if err != nil {
			return fmt.Errorf("failed to marshal feedback list: %w", err)
		}
		lists = append(lists, raw)
	}

	query := `
		INSERT INTO feedback (session_id, summary, strengths, areas_for_improvement, recommendations, next_steps)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE
		SET summary = EXCLUDED.summary, strengths = EXCLUDED.strengths,
		    areas_for_improvement = EXCLUDED.areas_for_improvement,
		    recommendations = EXCLUDED.recommendations, next_steps = EXCLUDED.next_steps,
		    created_at = NOW()
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query, f.SessionID, f.Summary, lists[0], lists[1], lists[2], lists[3]).
		Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	return nil
}

// GetFeedback retrieves the coaching feedback of a session
func (r *PostgresRepository) GetFeedback(ctx context.Context, sessionID string) (*models.Feedback, error) {
	query := `
		SELECT id, session_id, summary, strengths, areas_for_improvement, recommendations, next_steps, created_at
		FROM feedback
		WHERE session_id = $1
	`

	var f models.Feedback
	var strengthsJSON, areasJSON, recsJSON, stepsJSON []byte

	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&f.ID,
		&f.SessionID,
		&f.Summary,
		&strengthsJSON,
		&areasJSON,
		&recsJSON,
		&stepsJSON,
		&f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}

	for raw, dst := range map[*[]byte]*[]string{
		&strengthsJSON: &f.Strengths,
		&areasJSON:     &f.AreasForImprovement,
		&recsJSON:      &f.Recommendations,
		&stepsJSON:     &f.NextSteps,
	} {
		if err := json.Unmarshal(*raw, dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feedback: %w", err)
		}
	}

	return &f, nil
}

// --- API Clients ---

// CreateClient registers an API client. An existing key is left untouched.
func (r *PostgresRepository) CreateClient(ctx context.Context, c *models.ApiClient) error {
	permissionsJSON, err := json.Marshal(lo.Ternary(c.Permissions != nil, c.Permissions, []string{}))
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	metadataJSON, err := json.Marshal(lo.Ternary(c.Metadata != nil, c.Metadata, map[string]string{}))
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO api_clients (name, api_key, is_active, permissions, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (api_key) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, c.Name, c.ApiKey, c.IsActive, permissionsJSON, metadataJSON); err != nil {
		return fmt.Errorf("failed to create api client: %w", err)
	}

	return nil
}

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	// Parse permissions JSON array
	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	// Parse metadata JSON object
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	_, err := r.pool.Exec(ctx, query, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

// Helper functions

func paginate(query string, args []any, argNum, limit, offset int) (string, []any) {
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, limit)
		argNum++
	}

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, offset)
	}

	return query, args
}

func toInt32s(values []int) []int32 {
	return lo.Map(lo.Ternary(values != nil, values, []int{}), func(v int, _ int) int32 { return int32(v) })
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

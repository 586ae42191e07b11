package llmcall

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackzampolin/promptlab/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS llm_calls (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	latency_ms INTEGER NOT NULL,
	purpose TEXT NOT NULL,
	idea TEXT,
	prompt TEXT,
	provider TEXT,
	model TEXT,
	temperature REAL,
	status_code INTEGER,
	response TEXT,
	success INTEGER NOT NULL,
	error_kind TEXT,
	error TEXT
);
CREATE INDEX IF NOT EXISTS idx_llm_calls_timestamp ON llm_calls(timestamp);
CREATE INDEX IF NOT EXISTS idx_llm_calls_purpose ON llm_calls(purpose);
`

const selectColumns = `id, timestamp, latency_ms, purpose, idea, prompt, provider,
	model, temperature, status_code, response, success, error_kind, error`

// ErrNotFound is returned when no call has the requested id.
var ErrNotFound = errors.New("llm call not found")

// Store provides access to LLM call records. It shares the prompt
// database file and opens a connection per operation.
type Store struct {
	path string
}

// NewStore creates a store on the SQLite file at path.
func NewStore(ctx context.Context, path string) (*Store, error) {
	db, err := storage.Open(ctx, path, schema)
	if err != nil {
		return nil, err
	}
	db.Close()
	return &Store{path: path}, nil
}

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	Purpose  string
	Provider string
	Success  *bool
	After    *time.Time
	Limit    int
	Offset   int
}

// Insert writes one call.
func (s *Store) Insert(ctx context.Context, c *Call) error {
	db, err := storage.Open(ctx, s.path, schema)
	if err != nil {
		return err
	}
	defer db.Close()

	return storage.WithBusyRetry(ctx, func() error {
		_, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO llm_calls (`+selectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Timestamp.UTC().Format(storage.TimeFormat), c.LatencyMs, c.Purpose, c.Idea,
			c.Prompt, c.Provider, c.Model, c.Temperature, c.StatusCode, c.Response,
			c.Success, c.ErrorKind, c.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to insert llm call: %w", err)
		}
		return nil
	})
}

// Get retrieves a single LLM call by ID.
func (s *Store) Get(ctx context.Context, id string) (*Call, error) {
	db, err := storage.Open(ctx, s.path, schema)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	call, err := scanCall(db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM llm_calls WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return call, nil
}

// List retrieves LLM calls matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter QueryFilter) ([]Call, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Purpose != "" {
		conditions = append(conditions, "purpose = ?")
		args = append(args, filter.Purpose)
	}
	if filter.Provider != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, filter.Provider)
	}
	if filter.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *filter.Success)
	}
	if filter.After != nil {
		conditions = append(conditions, "timestamp > ?")
		args = append(args, filter.After.UTC().Format(storage.TimeFormat))
	}

	query := `SELECT ` + selectColumns + ` FROM llm_calls`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	db, err := storage.Open(ctx, s.path, schema)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	calls := []Call{}
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan llm call: %w", err)
		}
		calls = append(calls, *call)
	}
	return calls, rows.Err()
}

// CountByPurpose returns call counts grouped by purpose.
func (s *Store) CountByPurpose(ctx context.Context) (map[string]int, error) {
	db, err := storage.Open(ctx, s.path, schema)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT purpose, COUNT(*) FROM llm_calls GROUP BY purpose`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var purpose string
		var n int
		if err := rows.Scan(&purpose, &n); err != nil {
			return nil, err
		}
		counts[purpose] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (*Call, error) {
	var (
		c                                       Call
		ts                                      string
		idea, prompt, provider, model, response sql.NullString
		errorKind, errMsg                       sql.NullString
		temperature                             sql.NullFloat64
		statusCode                              sql.NullInt64
	)
	if err := row.Scan(&c.ID, &ts, &c.LatencyMs, &c.Purpose, &idea, &prompt, &provider,
		&model, &temperature, &statusCode, &response, &c.Success, &errorKind, &errMsg); err != nil {
		return nil, err
	}
	if t, err := time.Parse(storage.TimeFormat, ts); err == nil {
		c.Timestamp = t
	}
	c.Idea = idea.String
	c.Prompt = prompt.String
	c.Provider = provider.String
	c.Model = model.String
	c.Response = response.String
	c.ErrorKind = errorKind.String
	c.Error = errMsg.String
	c.StatusCode = int(statusCode.Int64)
	if temperature.Valid {
		v := temperature.Float64
		c.Temperature = &v
	}
	return &c, nil
}

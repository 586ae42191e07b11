// Package storage persists saved prompts in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jackzampolin/promptlab/internal/metrics"
)

// DefaultListLimit is used when ListPrompts is called with limit <= 0.
const DefaultListLimit = 100

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("prompt not found")

const schema = `
CREATE TABLE IF NOT EXISTS saved_prompts (
	id TEXT PRIMARY KEY,
	name TEXT,
	prompt TEXT,
	negative_prompt TEXT,
	lora_name TEXT,
	lora_id TEXT,
	lora_weight REAL,
	slider_value INTEGER,
	llm_input TEXT,
	llm_raw_response TEXT,
	tags TEXT,
	created_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_saved_prompts_created ON saved_prompts(created_at);
`

const selectColumns = `id, name, prompt, negative_prompt, lora_name, lora_id,
	lora_weight, slider_value, llm_input, llm_raw_response, tags, created_at`

// Config configures a Store.
type Config struct {
	// Path is the SQLite database file.
	Path string
	// OutputsDir receives exported JSON files.
	OutputsDir string
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
}

// Store is the saved prompt repository. Each operation opens and closes
// its own connection.
type Store struct {
	path       string
	outputsDir string
	logger     *slog.Logger
	metrics    *metrics.Recorder
}

// New creates a store, creating the schema and outputs directory.
func New(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	outputs := cfg.OutputsDir
	if outputs == "" {
		outputs = filepath.Join(filepath.Dir(cfg.Path), "outputs")
	}
	if err := os.MkdirAll(outputs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create outputs directory: %w", err)
	}

	db, err := Open(ctx, cfg.Path, schema)
	if err != nil {
		return nil, err
	}
	db.Close()

	return &Store{
		path:       cfg.Path,
		outputsDir: outputs,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// OutputsDir returns the export directory.
func (s *Store) OutputsDir() string {
	return s.outputsDir
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	return Open(ctx, s.path, schema)
}

// SavePrompt inserts or replaces rec and returns its id. An id is generated
// when rec.ID is empty and created_at is stamped when rec.CreatedAt is
// empty. Failures are logged and returned.
func (s *Store) SavePrompt(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = now()
	}
	if rec.Tags == nil {
		rec.Tags = Tags{}
	}

	err := s.save(ctx, rec)
	s.metrics.RecordStorageOp("save", err)
	if err != nil {
		s.logger.Error("failed to save prompt", "id", rec.ID, "error", err)
		return "", err
	}
	s.logger.Debug("saved prompt", "id", rec.ID, "name", rec.Name)
	return rec.ID, nil
}

func (s *Store) save(ctx context.Context, rec Record) error {
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	return WithBusyRetry(ctx, func() error {
		_, err := db.ExecContext(ctx, `
			INSERT OR REPLACE INTO saved_prompts
			(id, name, prompt, negative_prompt, lora_name, lora_id, lora_weight,
			slider_value, llm_input, llm_raw_response, tags, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Name, rec.Prompt, rec.NegativePrompt, rec.LoraName, rec.LoraID,
			nullFloat(rec.LoraWeight), nullInt(rec.SliderValue), rec.LLMInput, rec.LLMRawResponse,
			string(tagsJSON), rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert prompt: %w", err)
		}
		return nil
	})
}

// Get returns the record with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	row := db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM saved_prompts WHERE id = ? LIMIT 1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt %s: %w", id, err)
	}
	return rec, nil
}

// GetPrompt returns the record with id, or nil if it is absent or cannot
// be read.
func (s *Store) GetPrompt(ctx context.Context, id string) *Record {
	rec, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.metrics.RecordStorageOp("get", nil)
		return nil
	}
	s.metrics.RecordStorageOp("get", err)
	if err != nil {
		s.logger.Error("failed to get prompt", "id", id, "error", err)
		return nil
	}
	return rec
}

// List returns up to limit records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM saved_prompts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prompts: %w", err)
	}
	return records, nil
}

// ListPrompts returns up to limit records, newest first. It returns an
// empty slice on failure.
func (s *Store) ListPrompts(ctx context.Context, limit int) []Record {
	records, err := s.List(ctx, limit)
	s.metrics.RecordStorageOp("list", err)
	if err != nil {
		s.logger.Error("failed to list prompts", "error", err)
		return []Record{}
	}
	return records
}

// Delete removes the record with id and reports whether a row was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	db, err := s.open(ctx)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var affected int64
	err = WithBusyRetry(ctx, func() error {
		res, err := db.ExecContext(ctx, `DELETE FROM saved_prompts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete prompt: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeletePrompt removes the record with id. It returns false when nothing
// was removed or the delete failed.
func (s *Store) DeletePrompt(ctx context.Context, id string) bool {
	removed, err := s.Delete(ctx, id)
	s.metrics.RecordStorageOp("delete", err)
	if err != nil {
		s.logger.Error("failed to delete prompt", "id", id, "error", err)
		return false
	}
	return removed
}

// ExportPromptJSON writes the record as indented JSON into the outputs
// directory and returns the file path. It returns "" with a nil error when
// the record does not exist. filename defaults to "<id>.json" and is
// reduced to its base name.
func (s *Store) ExportPromptJSON(ctx context.Context, id, filename string) (string, error) {
	path, err := s.export(ctx, id, filename)
	s.metrics.RecordStorageOp("export", err)
	if err != nil {
		s.logger.Error("failed to export prompt", "id", id, "error", err)
		return "", err
	}
	return path, nil
}

func (s *Store) export(ctx context.Context, id, filename string) (string, error) {
	rec, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	name := exportName(id, filename)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt: %w", err)
	}

	if err := os.MkdirAll(s.outputsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create outputs directory: %w", err)
	}
	path := filepath.Join(s.outputsDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.logger.Info("exported prompt", "id", id, "path", path)
	return path, nil
}

func exportName(id, filename string) string {
	name := filepath.Base(filename)
	if filename == "" || name == "." || name == string(filepath.Separator) || name == ".." {
		return id + ".json"
	}
	return name
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                                      Record
		name, prompt, negative, loraName, loraID sql.NullString
		llmInput, llmRaw, tagsJSON, createdAt    sql.NullString
		weight                                   sql.NullFloat64
		slider                                   sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &name, &prompt, &negative, &loraName, &loraID,
		&weight, &slider, &llmInput, &llmRaw, &tagsJSON, &createdAt); err != nil {
		return nil, err
	}

	rec.Name = name.String
	rec.Prompt = prompt.String
	rec.NegativePrompt = negative.String
	rec.LoraName = loraName.String
	rec.LoraID = loraID.String
	rec.LLMInput = llmInput.String
	rec.LLMRawResponse = llmRaw.String
	rec.CreatedAt = createdAt.String
	if weight.Valid {
		w := weight.Float64
		rec.LoraWeight = &w
	}
	if slider.Valid {
		v := int(slider.Int64)
		rec.SliderValue = &v
	}

	rec.Tags = Tags{}
	if tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &rec.Tags); err != nil {
			rec.Tags = Tags{}
		}
	}
	return &rec, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

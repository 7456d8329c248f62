package storage

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
)

// HistoryDB records completed jobs in SQLite so past transcripts can be
// listed and reopened after a restart.
type HistoryDB struct {
	db *sql.DB
}

// HistoryEntry is one row of the job history.
type HistoryEntry struct {
	JobID              string    `json:"job_id"`
	Filename           string    `json:"filename"`
	Language           string    `json:"language"`
	TargetLanguage     string    `json:"target_language,omitempty"`
	TranslationEnabled bool      `json:"translation_enabled"`
	DurationSeconds    float64   `json:"duration_seconds"`
	WordCount          int       `json:"word_count"`
	ProcessingSeconds  float64   `json:"processing_seconds"`
	JobDir             string    `json:"job_dir"`
	GDriveURL          string    `json:"gdrive_url,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, apperrors.Configuration("failed to open history database", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL,
		language TEXT NOT NULL,
		target_language TEXT,
		translation_enabled INTEGER NOT NULL DEFAULT 0,
		duration_seconds REAL,
		word_count INTEGER,
		processing_seconds REAL,
		job_dir TEXT NOT NULL,
		gdrive_url TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Configuration("failed to initialize history schema", err)
	}

	return &HistoryDB{db: db}, nil
}

// Record inserts a completed job.
func (h *HistoryDB) Record(e HistoryEntry) error {
	query := `
	INSERT INTO jobs (job_id, filename, language, target_language, translation_enabled,
		duration_seconds, word_count, processing_seconds, job_dir, gdrive_url, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := h.db.Exec(query, e.JobID, e.Filename, e.Language, e.TargetLanguage,
		e.TranslationEnabled, e.DurationSeconds, e.WordCount, e.ProcessingSeconds,
		e.JobDir, e.GDriveURL, e.CreatedAt)
	if err != nil {
		return apperrors.FileIO("failed to record job history", err)
	}
	return nil
}

// Get returns one job by ID, or a FileIO error if it does not exist.
func (h *HistoryDB) Get(jobID string) (*HistoryEntry, error) {
	row := h.db.QueryRow(`
	SELECT job_id, filename, language, target_language, translation_enabled,
		duration_seconds, word_count, processing_seconds, job_dir, gdrive_url, created_at
	FROM jobs WHERE job_id = ?`, jobID)

	e, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.FileIO("job not found: "+jobID, err)
	}
	if err != nil {
		return nil, apperrors.FileIO("failed to read job history", err)
	}
	return e, nil
}

// List returns the most recent jobs, newest first.
func (h *HistoryDB) List(limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.Query(`
	SELECT job_id, filename, language, target_language, translation_enabled,
		duration_seconds, word_count, processing_seconds, job_dir, gdrive_url, created_at
	FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.FileIO("failed to list job history", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, apperrors.FileIO("failed to read job history", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// UpdateGDriveURL records the Drive link after a successful upload.
func (h *HistoryDB) UpdateGDriveURL(jobID, url string) error {
	_, err := h.db.Exec(`UPDATE jobs SET gdrive_url = ? WHERE job_id = ?`, url, jobID)
	if err != nil {
		return apperrors.FileIO("failed to update drive link", err)
	}
	return nil
}

func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func scanEntry(scan func(dest ...any) error) (*HistoryEntry, error) {
	var (
		e            HistoryEntry
		target       sql.NullString
		gdrive       sql.NullString
		translateInt int
	)
	err := scan(&e.JobID, &e.Filename, &e.Language, &target, &translateInt,
		&e.DurationSeconds, &e.WordCount, &e.ProcessingSeconds, &e.JobDir,
		&gdrive, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.TargetLanguage = target.String
	e.GDriveURL = gdrive.String
	e.TranslationEnabled = translateInt != 0
	return &e, nil
}

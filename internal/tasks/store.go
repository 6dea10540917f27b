package tasks

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store provides SQLite-backed persistence for tasks (~/.ccbox/tasks.db).
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database at dbPath and creates tables if they
// don't exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		engine TEXT NOT NULL,
		project TEXT NOT NULL,
		prompt TEXT NOT NULL,
		status TEXT NOT NULL,
		process_id TEXT,
		session_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateTask records a new spawn request.
func (s *Store) CreateTask(engine, project, prompt string) (*Task, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := s.db.Exec(
		`INSERT INTO tasks (id, engine, project, prompt, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'pending', ?, ?)`,
		id, engine, project, prompt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return &Task{
		ID:        id,
		Engine:    engine,
		Project:   project,
		Prompt:    prompt,
		Status:    "pending",
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetTask retrieves a task by ID. Returns nil when absent.
func (s *Store) GetTask(id string) (*Task, error) {
	row := s.db.QueryRow(
		`SELECT id, engine, project, prompt, status,
		        COALESCE(process_id, ''), COALESCE(session_id, ''),
		        created_at, updated_at
		 FROM tasks WHERE id = ?`,
		id,
	)

	var task Task
	err := row.Scan(&task.ID, &task.Engine, &task.Project, &task.Prompt, &task.Status,
		&task.ProcessID, &task.SessionID, &task.CreatedAt, &task.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &task, nil
}

// UpdateStatus moves a task through its lifecycle, optionally attaching
// the spawned process and associated session ids.
func (s *Store) UpdateStatus(id, status, processID, sessionID string) error {
	_, err := s.db.Exec(
		`UPDATE tasks
		 SET status = ?,
		     process_id = COALESCE(NULLIF(?, ''), process_id),
		     session_id = COALESCE(NULLIF(?, ''), session_id),
		     updated_at = ?
		 WHERE id = ?`,
		status, processID, sessionID, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// ListTasks returns summaries of the most recent tasks.
func (s *Store) ListTasks(limit int) ([]Summary, error) {
	rows, err := s.db.Query(
		`SELECT id, engine, project, status, updated_at
		 FROM tasks
		 ORDER BY updated_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Engine, &sum.Project, &sum.Status, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return summaries, nil
}

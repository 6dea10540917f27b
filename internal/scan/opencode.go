package scan

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/diskd-ai/ccbox/internal/domain"
	_ "modernc.org/sqlite"
)

// OpenCode enumerates sessions from the opencode.db SQLite database. The
// database is only ever opened read-only; an unexpected schema yields a
// notice and zero sessions rather than fabricated fields.
func OpenCode(dbPath string) Output {
	if _, err := os.Stat(dbPath); err != nil {
		return Output{Notices: []string{fmt.Sprintf("OpenCode DB not found: %s (set CCBOX_OPENCODE_DB_PATH to override)", dbPath)}}
	}

	db, err := openReadOnly(dbPath)
	if err != nil {
		return Output{Notices: []string{fmt.Sprintf("OpenCode DB is not readable: %s (%v)", dbPath, err)}}
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT s.id, s.title, s.directory, s.time_created, s.time_updated, p.worktree
		FROM session s
		JOIN project p ON p.id = s.project_id
		WHERE s.time_archived IS NULL
		ORDER BY s.time_updated DESC, s.id DESC`)
	if err != nil {
		return Output{
			Warnings: 1,
			Notices:  []string{"OpenCode DB has an unexpected schema."},
		}
	}
	defer rows.Close()

	var out Output
	for rows.Next() {
		var (
			id, title, directory, worktree string
			timeCreated, timeUpdated       int64
		)
		if err := rows.Scan(&id, &title, &directory, &timeCreated, &timeUpdated, &worktree); err != nil {
			out.Warnings++
			continue
		}

		cwd := directory
		if worktree != "" {
			cwd = worktree
		}
		if title == "" {
			title = domain.UntitledSession
		}

		out.Sessions = append(out.Sessions, domain.SessionSummary{
			Meta: domain.SessionMeta{
				ID:        id,
				CWD:       cwd,
				StartedAt: time.UnixMilli(timeCreated).UTC().Format(time.RFC3339),
			},
			Engine:     domain.EngineOpenCode,
			LogPath:    OpenCodeLogPath(dbPath, id),
			Title:      title,
			ModifiedAt: time.UnixMilli(timeUpdated),
		})
	}
	if err := rows.Err(); err != nil {
		out.Warnings++
	}
	return out
}

func openReadOnly(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?mode=ro&_pragma=busy_timeout(250)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// OpenCodeLogPath synthesizes a stable log identifier for a DB-backed
// session: opencode://<db_path>#<session_id>.
func OpenCodeLogPath(dbPath, sessionID string) string {
	return "opencode://" + dbPath + "#" + sessionID
}

// ParseOpenCodeLogPath splits a synthesized OpenCode log path back into its
// parts. Returns false for any other path shape.
func ParseOpenCodeLogPath(logPath string) (dbPath, sessionID string, ok bool) {
	const prefix = "opencode://"
	if len(logPath) <= len(prefix) || logPath[:len(prefix)] != prefix {
		return "", "", false
	}
	rest := logPath[len(prefix):]
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i] == '#' {
			return rest[:i], rest[i+1:], rest[:i] != "" && rest[i+1:] != ""
		}
	}
	return "", "", false
}

// OpenCodeMessageRow is one message row handed to the decoder, already
// fetched; the decoder itself never touches the database.
type OpenCodeMessageRow struct {
	ID            string
	TimeCreatedMS int64
	Data          string // JSON payload of the message
	Parts         []string
}

// OpenCodeSessionRows loads the message and part rows of one session in
// creation order.
func OpenCodeSessionRows(dbPath, sessionID string) ([]OpenCodeMessageRow, int64, error) {
	db, err := openReadOnly(dbPath)
	if err != nil {
		return nil, 0, err
	}
	defer db.Close()

	var timeUpdated int64
	err = db.QueryRow(`SELECT time_updated FROM session WHERE id = ?`, sessionID).Scan(&timeUpdated)
	if err == sql.ErrNoRows {
		return nil, 0, fmt.Errorf("OpenCode session not found: %s", sessionID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("query session: %w", err)
	}

	rows, err := db.Query(`
		SELECT id, time_created, data
		FROM message
		WHERE session_id = ?
		ORDER BY time_created ASC, id ASC`, sessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []OpenCodeMessageRow
	for rows.Next() {
		var row OpenCodeMessageRow
		if err := rows.Scan(&row.ID, &row.TimeCreatedMS, &row.Data); err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate messages: %w", err)
	}

	partRows, err := db.Query(`
		SELECT message_id, data
		FROM part
		WHERE session_id = ?
		ORDER BY id ASC`, sessionID)
	if err != nil {
		// Older databases have no part table; messages alone still render.
		return messages, timeUpdated, nil
	}
	defer partRows.Close()

	partsByMessage := make(map[string][]string)
	for partRows.Next() {
		var messageID, data string
		if err := partRows.Scan(&messageID, &data); err != nil {
			continue
		}
		partsByMessage[messageID] = append(partsByMessage[messageID], data)
	}

	for i := range messages {
		messages[i].Parts = partsByMessage[messages[i].ID]
	}
	return messages, timeUpdated, nil
}

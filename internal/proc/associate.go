package proc

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AssociationTimeout is how long to keep searching for the on-disk log
// after the session_meta was seen.
const AssociationTimeout = 30 * time.Second

// associationPoll is the search retry interval.
const associationPoll = 200 * time.Millisecond

// FindSessionLog locates the rollout file for a session id under the
// YYYY/MM/DD layout. Codex names the date directory after the local
// calendar date while session_meta timestamps are UTC, so the UTC day and
// both adjacent days are searched.
func FindSessionLog(sessionsDir, startedAtRFC3339, sessionID string) (string, bool) {
	ts, err := time.Parse(time.RFC3339, startedAtRFC3339)
	if err != nil {
		ts, err = time.Parse(time.RFC3339Nano, startedAtRFC3339)
		if err != nil {
			return "", false
		}
	}

	for _, candidate := range []time.Time{ts, ts.AddDate(0, 0, 1), ts.AddDate(0, 0, -1)} {
		if path, ok := findInDayDir(sessionsDir, candidate, sessionID); ok {
			return path, true
		}
	}
	return "", false
}

func findInDayDir(sessionsDir string, day time.Time, sessionID string) (string, bool) {
	dayDir := filepath.Join(sessionsDir, day.Format("2006"), day.Format("01"), day.Format("02"))
	entries, err := os.ReadDir(dayDir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		if strings.Contains(name, sessionID) {
			return filepath.Join(dayDir, name), true
		}
	}
	return "", false
}

// WaitForSessionLog polls until the log appears or the timeout elapses.
func WaitForSessionLog(sessionsDir, startedAtRFC3339, sessionID string, timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if path, ok := FindSessionLog(sessionsDir, startedAtRFC3339, sessionID); ok {
			return path, true
		}
		if time.Now().After(deadline) {
			return "", false
		}
		time.Sleep(associationPoll)
	}
}

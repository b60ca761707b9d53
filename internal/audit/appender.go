// Package audit keeps the release log: a JSONL file in which every OTA
// build and publish appends one record, and each record's hash covers the
// hash of the record before it.
package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/smartguitar/sgc/internal/integrity"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/jsonutil"
)

// EventType identifies the kind of release event.
type EventType string

const (
	EventBuild   EventType = "ota_build"
	EventPublish EventType = "ota_publish"
)

// Record is one line of the release log.
type Record struct {
	Timestamp  time.Time        `json:"timestamp"`
	Event      EventType        `json:"event"`
	Subject    string           `json:"subject"`
	Details    map[string]any   `json:"details,omitempty"`
	PrevHash   integrity.Digest `json:"prev_hash"`
	RecordHash integrity.Digest `json:"record_hash"`
}

const hashField = "record_hash"

// FileAppender appends records to a release log.
type FileAppender struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileAppender creates a new FileAppender.
func NewFileAppender(path string) *FileAppender {
	return &FileAppender{path: path, now: time.Now}
}

// Path returns the log file path.
func (a *FileAppender) Path() string {
	return a.path
}

// Append adds a record for event on subject.
func (a *FileAppender) Append(event EventType, subject string, details map[string]any) (*Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	// Other sgc processes may append to the same log.
	if err := lockFile(file); err != nil {
		return nil, fmt.Errorf("lock audit log: %w", err)
	}
	defer unlockFile(file)

	prevHash, err := lastRecordHash(file)
	if err != nil {
		return nil, fmt.Errorf("get last record hash: %w", err)
	}

	record := &Record{
		Timestamp: a.now().UTC(),
		Event:     event,
		Subject:   subject,
		Details:   details,
		PrevHash:  prevHash,
	}
	line, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal audit record: %w", err)
	}
	if record.RecordHash, err = recordHash(line); err != nil {
		return nil, err
	}
	if line, err = json.Marshal(record); err != nil {
		return nil, fmt.Errorf("marshal audit record: %w", err)
	}

	if _, err := file.Seek(0, 2); err != nil {
		return nil, fmt.Errorf("seek to end: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("write audit record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return nil, fmt.Errorf("sync audit log: %w", err)
	}
	return record, nil
}

// LastRecordHash returns the hash of the last record, or "" for an empty
// or missing log.
func (a *FileAppender) LastRecordHash() (integrity.Digest, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()
	return lastRecordHash(file)
}

func lastRecordHash(file *os.File) (integrity.Digest, error) {
	if _, err := file.Seek(0, 0); err != nil {
		return "", fmt.Errorf("seek to start: %w", err)
	}

	var last integrity.Digest
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue // skip malformed lines
		}
		last = record.RecordHash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan audit log: %w", err)
	}
	return last, nil
}

// recordHash hashes the canonical form of line without its record_hash.
func recordHash(line []byte) (integrity.Digest, error) {
	data, err := jsonutil.CanonicalWithout(json.RawMessage(line), hashField)
	if err != nil {
		return "", fmt.Errorf("canonical marshal: %w", err)
	}
	return integrity.SumBytes(data), nil
}

// Verify walks the log at path and checks every record hash and every
// back link. It returns the number of records.
func Verify(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, errclass.ErrFileNotFound.WithMessagef("audit log %s", path)
		}
		return 0, fmt.Errorf("read audit log: %w", err)
	}

	var prev integrity.Digest
	n := 0
	for i, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return n, errclass.ErrManifestInvalid.WithMessagef("line %d: %v", i+1, err)
		}
		want, err := recordHash(line)
		if err != nil {
			return n, err
		}
		if record.RecordHash != want {
			return n, errclass.ErrDigestMismatch.WithMessagef("line %d: record hash %s, computed %s", i+1, record.RecordHash, want)
		}
		if record.PrevHash != prev {
			return n, errclass.ErrDigestMismatch.WithMessagef("line %d: prev_hash %s does not link to %s", i+1, record.PrevHash, prev)
		}
		prev = record.RecordHash
		n++
	}
	return n, nil
}

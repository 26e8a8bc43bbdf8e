package history

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nholik/qlik-sentinel/internal/task"
	"github.com/rs/zerolog"
)

// Column names of the history CSV. Loading matches columns by header
// name, so files written by older or newer versions with extra or
// reordered columns still read correctly.
const (
	colRunTime   = "Run Time"
	colTaskID    = "Task ID"
	colTaskName  = "Task Name"
	colAppName   = "App Name"
	colStream    = "Stream"
	colTimestamp = "Timestamp"
	colStatus    = "Status"
	colInterval  = "Execution Interval"
)

var header = []string{colRunTime, colTaskID, colTaskName, colAppName, colStream, colTimestamp, colStatus, colInterval}

// FileStore persists notified occurrences as rows of a CSV log.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore returns a CSV-backed history store.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// Load reads the history log. A missing file returns an empty snapshot
// with a note; malformed rows are skipped with a warning, never fatal.
func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	snapshot := EmptySnapshot()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info().Str("path", s.path).Msg("no previous failure history file found")
			return snapshot, nil
		}
		return Snapshot{}, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	head, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return snapshot, nil
		}
		s.logger.Warn().Str("path", s.path).Err(err).Msg("history header unreadable, starting fresh")
		return snapshot, nil
	}
	columns := indexColumns(head)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn().Str("path", s.path).Err(err).Msg("skipping malformed history row")
			continue
		}

		taskID := columns.get(row, colTaskID)
		minute := strings.TrimSpace(columns.get(row, colTimestamp))
		runTime := strings.TrimSpace(columns.get(row, colRunTime))
		if taskID == "" || minute == "" || runTime == "" {
			s.logger.Warn().Str("path", s.path).Str("task_id", taskID).Msg("skipping history row with missing fields")
			continue
		}

		notifiedAt, err := time.ParseInLocation(RunTimeLayout, runTime, time.Local)
		if err != nil {
			s.logger.Warn().Str("path", s.path).Str("run_time", runTime).Msg("skipping history row with unparsable run time")
			continue
		}

		key := task.KeyForMinute(taskID, minute)
		snapshot.record(key, columns.get(row, colTaskName), notifiedAt)
	}

	return snapshot, nil
}

// Append writes one row per occurrence to the end of the log, adding
// the header when the file is new or empty. Existing rows are never
// rewritten.
func (s *FileStore) Append(ctx context.Context, occurrences []Occurrence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(occurrences) == 0 {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	needHeader, err := s.needsHeader()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(f)
	if needHeader {
		if err := writer.Write(header); err != nil {
			_ = f.Close()
			return err
		}
	}
	for _, occ := range occurrences {
		row := []string{
			occ.NotifiedAt.Format(RunTimeLayout),
			occ.Task.ID,
			occ.Task.Name,
			occ.Task.AppName,
			occ.Task.Stream,
			occ.Task.FailedAtLabel(),
			string(occ.Task.Status),
			occ.Task.ExecutionInterval,
		}
		if err := writer.Write(row); err != nil {
			_ = f.Close()
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *FileStore) needsHeader() (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	return info.Size() == 0, nil
}

// columnIndex maps header names to positions for name-keyed row access.
type columnIndex map[string]int

func indexColumns(head []string) columnIndex {
	index := make(columnIndex, len(head))
	for i, name := range head {
		index[strings.TrimSpace(name)] = i
	}
	return index
}

func (c columnIndex) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/Techsolutions2024/strawberry/internal/config"
	"github.com/Techsolutions2024/strawberry/internal/model"
)

var (
	ErrWrite          = errors.New("storage write failed")
	ErrMirror         = errors.New("database mirror write failed")
	ErrSchemaMismatch = errors.New("detection log header does not match configured columns")
)

var (
	baseColumns   = []string{"filename", "class", "confidence", "x1", "y1", "x2", "y2"}
	centerColumns = []string{"center_x", "center_y"}
)

// Header returns the log columns for the given center setting.
func Header(center bool) []string {
	if center {
		return append(slices.Clone(baseColumns), centerColumns...)
	}
	return slices.Clone(baseColumns)
}

// logFile is the part of *os.File the log uses.
type logFile interface {
	io.Writer
	io.ReaderAt
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Close() error
}

// DetectionLog is an append-only CSV file of detection records.
type DetectionLog struct {
	mu     sync.Mutex
	path   string
	file   logFile
	center bool
}

// OpenLog opens the log at path. A missing or empty file gets the header. With the
// append policy an existing header must match the configured columns; with the
// recreate policy the file is truncated first.
func OpenLog(path, policy string, center bool) (*DetectionLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: create log directory: %v", ErrWrite, err)
	}

	flags := os.O_RDWR | os.O_CREATE | os.O_APPEND
	switch policy {
	case config.PolicyAppend:
	case config.PolicyRecreate:
		flags |= os.O_TRUNC
	default:
		return nil, fmt.Errorf("unknown log policy %q", policy)
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrWrite, path, err)
	}

	l := &DetectionLog{path: path, file: file, center: center}
	if err := l.prepare(); err != nil {
		file.Close()
		return nil, err
	}
	return l, nil
}

func (l *DetectionLog) prepare() error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrWrite, l.path, err)
	}
	want := Header(l.center)
	if info.Size() == 0 {
		return l.writeRow(want)
	}

	r := csv.NewReader(io.NewSectionReader(l.file, 0, info.Size()))
	r.FieldsPerRecord = -1
	got, err := r.Read()
	if err != nil {
		return fmt.Errorf("%w: %s: unreadable header: %v", ErrSchemaMismatch, l.path, err)
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("%w: %s has %v, expected %v", ErrSchemaMismatch, l.path, got, want)
	}
	return nil
}

// Append writes one row. Failures are returned wrapped in ErrWrite and are not retried.
func (l *DetectionLog) Append(filename string, rec model.DetectionRecord) error {
	row := []string{
		filename,
		rec.Class,
		strconv.FormatFloat(rec.Confidence, 'f', 2, 64),
		strconv.Itoa(rec.Box.X1),
		strconv.Itoa(rec.Box.Y1),
		strconv.Itoa(rec.Box.X2),
		strconv.Itoa(rec.Box.Y2),
	}
	if l.center {
		c := model.Point{X: (rec.Box.X1 + rec.Box.X2) / 2, Y: (rec.Box.Y1 + rec.Box.Y2) / 2}
		if rec.Center != nil {
			c = *rec.Center
		}
		row = append(row, strconv.Itoa(c.X), strconv.Itoa(c.Y))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeRow(row)
}

func (l *DetectionLog) writeRow(row []string) error {
	if l.file == nil {
		return fmt.Errorf("%w: log %s is closed", ErrWrite, l.path)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	w.Flush()

	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrWrite, l.path, err)
	}
	if _, err := l.file.Write(buf.Bytes()); err != nil {
		// drop a partial row so the next one starts on a fresh line
		if terr := l.file.Truncate(info.Size()); terr != nil {
			return fmt.Errorf("%w: %v (truncate: %v)", ErrWrite, err, terr)
		}
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// Path returns the log file path.
func (l *DetectionLog) Path() string {
	return l.path
}

// Close closes the file. Further appends fail with ErrWrite.
func (l *DetectionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// LogEntry is one parsed row of a detection log.
type LogEntry struct {
	Filename   string
	Class      string
	Confidence float64
	Box        model.Box
	Center     *model.Point
}

// ReadLog parses a detection log written by DetectionLog.
func ReadLog(path string) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log header: %w", err)
	}
	var center bool
	switch {
	case slices.Equal(header, Header(false)):
	case slices.Equal(header, Header(true)):
		center = true
	default:
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, header)
	}

	var entries []LogEntry
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read log line %d: %w", line, err)
		}
		entry, err := parseRow(row, center)
		if err != nil {
			return nil, fmt.Errorf("log line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseRow(row []string, center bool) (LogEntry, error) {
	conf, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return LogEntry{}, fmt.Errorf("invalid confidence %q: %w", row[2], err)
	}
	nums := make([]int, 0, 4)
	for _, s := range row[3:7] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return LogEntry{}, fmt.Errorf("invalid coordinate %q: %w", s, err)
		}
		nums = append(nums, n)
	}
	entry := LogEntry{
		Filename:   row[0],
		Class:      row[1],
		Confidence: conf,
		Box:        model.Box{X1: nums[0], Y1: nums[1], X2: nums[2], Y2: nums[3]},
	}
	if center {
		cx, errX := strconv.Atoi(row[7])
		cy, errY := strconv.Atoi(row[8])
		if errX != nil || errY != nil {
			return LogEntry{}, fmt.Errorf("invalid center %q,%q", row[7], row[8])
		}
		entry.Center = &model.Point{X: cx, Y: cy}
	}
	return entry, nil
}

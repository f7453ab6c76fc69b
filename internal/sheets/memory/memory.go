// Package memory is a DatasetMirror that keeps the rendered tabs in process,
// optionally exporting each one as a CSV file. It backs the worker when no
// spreadsheet is configured.
package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hisab/internal/core"
	"hisab/internal/sheets"
)

type Mirror struct {
	mu       sync.Mutex
	dir      string
	tables   map[string]sheets.Table
	revision int64
	runs     int
	failNext error
}

var _ sheets.DatasetMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{tables: make(map[string]sheets.Table)}
}

// NewWithDir also writes <dir>/<tab>.csv on every mirror run.
func NewWithDir(dir string) *Mirror {
	m := New()
	m.dir = dir
	return m
}

func (m *Mirror) Mirror(_ context.Context, ds core.Dataset, revision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs++
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}

	tables := sheets.Tables(ds, revision, time.Now())
	if m.dir != "" {
		if err := writeCSV(m.dir, tables); err != nil {
			return err
		}
	}
	for _, t := range tables {
		m.tables[t.Name] = t
	}
	m.revision = revision
	return nil
}

// Table returns the last content written to tab.
func (m *Mirror) Table(tab string) (sheets.Table, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[tab]
	return t, ok
}

// Revision is the last revision mirrored successfully.
func (m *Mirror) Revision() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revision
}

// Runs counts every Mirror call, failed ones included.
func (m *Mirror) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// FailNext makes the next Mirror call return err.
func (m *Mirror) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func writeCSV(dir string, tables []sheets.Table) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}
	for _, t := range tables {
		if err := writeTable(filepath.Join(dir, t.Name+".csv"), t); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(path string, t sheets.Table) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", t.Name, err)
	}

	w := csv.NewWriter(f)
	for _, row := range t.Values() {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprint(v)
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", t.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", t.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", t.Name, err)
	}
	return os.Rename(tmp, path)
}

// Package datarecording keeps the history of the time steps that model runs
// have produced in a SQLite database.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/gnomeview/timestep"
)

const stepTable = "time_steps"

// A StepEntry is one row of the step history.
type StepEntry struct {
	RunID     string
	StepID    int
	Timestamp string
	URL       string
}

// TimeStep converts the entry back to the step it was recorded from.
func (e StepEntry) TimeStep() timestep.TimeStep {
	return timestep.TimeStep{
		ID:        e.StepID,
		Timestamp: e.Timestamp,
		URL:       e.URL,
	}
}

// DataRecorder buffers produced steps and stores them.
type DataRecorder interface {
	// RecordStep buffers a step produced by the given run.
	RecordStep(runID string, step timestep.TimeStep)

	// Flush writes all buffered steps into the database.
	Flush() error

	// Close flushes and releases the database.
	Close() error
}

// New creates a DataRecorder that writes into the SQLite file at path. An
// empty path picks a unique file name in the working directory.
func New(path string) (*SQLiteWriter, error) {
	w := NewSQLiteWriter(path)

	if err := w.Init(); err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = w.Flush() })

	return w, nil
}

// NewWithDB creates a DataRecorder with a given database.
func NewWithDB(db *sql.DB) (*SQLiteWriter, error) {
	w := &SQLiteWriter{
		DB:        db,
		batchSize: defaultBatchSize,
	}

	if err := w.createTable(); err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = w.Flush() })

	return w, nil
}

const defaultBatchSize = 1000

// SQLiteWriter is the DataRecorder that writes into a SQLite database.
type SQLiteWriter struct {
	*sql.DB

	lock      sync.Mutex
	dbName    string
	batchSize int
	entries   []StepEntry
}

// NewSQLiteWriter creates a writer that is not connected yet. Call Init
// before recording.
func NewSQLiteWriter(path string) *SQLiteWriter {
	return &SQLiteWriter{
		dbName:    path,
		batchSize: defaultBatchSize,
	}
}

// Filename returns the file that the writer stores into.
func (w *SQLiteWriter) Filename() string {
	return w.dbName + ".sqlite3"
}

// Init establishes a connection to the database and creates the step table.
func (w *SQLiteWriter) Init() error {
	if w.dbName == "" {
		w.dbName = "gnomeview_" + xid.New().String()
	}

	filename := w.Filename()

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return errors.Wrapf(err, "opening %s", filename)
	}

	w.DB = db

	if err := w.createTable(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Recording time steps in %s\n", filename)

	return nil
}

func (w *SQLiteWriter) createTable() error {
	_, err := w.Exec(`CREATE TABLE IF NOT EXISTS ` + stepTable + ` (
	RunID TEXT NOT NULL,
	StepID INTEGER NOT NULL,
	Timestamp TEXT NOT NULL,
	URL TEXT NOT NULL,
	PRIMARY KEY (RunID, StepID)
);`)

	return errors.Wrap(err, "creating step table")
}

// RecordStep buffers a step. The buffer is flushed when it reaches the batch
// size.
func (w *SQLiteWriter) RecordStep(runID string, step timestep.TimeStep) {
	w.lock.Lock()
	w.entries = append(w.entries, StepEntry{
		RunID:     runID,
		StepID:    step.ID,
		Timestamp: step.Timestamp,
		URL:       step.URL,
	})
	full := len(w.entries) >= w.batchSize
	w.lock.Unlock()

	if full {
		if err := w.Flush(); err != nil {
			log.Error().Err(err).Msg("flushing time steps")
		}
	}
}

// Flush writes all the buffered steps in one transaction.
func (w *SQLiteWriter) Flush() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if len(w.entries) == 0 {
		return nil
	}

	tx, err := w.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO " + stepTable +
		" VALUES (?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "preparing insert")
	}
	defer stmt.Close()

	for _, e := range w.entries {
		_, err := stmt.Exec(e.RunID, e.StepID, e.Timestamp, e.URL)
		if err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "inserting step %d of run %s",
				e.StepID, e.RunID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing steps")
	}

	w.entries = nil

	return nil
}

// Close flushes the pending steps and closes the database.
func (w *SQLiteWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	return w.DB.Close()
}

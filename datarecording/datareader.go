package datarecording

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
)

// ErrStepNotRecorded is returned when a requested step is not in the
// history.
var ErrStepNotRecorded = errors.New("step not recorded")

// QueryParams encapsulates all query parameters
type QueryParams struct {
	// Where holds the WHERE clause without the "WHERE" keyword
	// Example: "RunID = ? AND StepID > ?"
	Where string

	// Args holds the arguments for the placeholders in Where
	Args []any

	// Limit is the maximum number of records to return (pagination)
	// Set to 0 for no limit
	Limit int

	// Offset is the number of records to skip (pagination)
	Offset int

	// OrderBy specifies sorting, without the "ORDER BY" keywords
	// Example: "StepID DESC"
	OrderBy string
}

// DataReader reads the step history.
type DataReader interface {
	// QuerySteps returns the matching steps and the number of steps that
	// match regardless of pagination.
	QuerySteps(ctx context.Context, params QueryParams) (
		results []StepEntry,
		totalCount int,
		err error,
	)

	// Step returns one recorded step.
	Step(ctx context.Context, runID string, id int) (StepEntry, error)

	// Close closes the reader
	Close() error
}

type sqliteReader struct {
	*sql.DB
}

// NewReader opens the SQLite file at path for reading.
func NewReader(dbFilename string) (DataReader, error) {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dbFilename)
	}

	return &sqliteReader{DB: db}, nil
}

// NewReaderWithDB creates a new DataReader with a given database
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{DB: db}
}

func (r *sqliteReader) QuerySteps(
	ctx context.Context,
	params QueryParams,
) ([]StepEntry, int, error) {
	query := "SELECT RunID, StepID, Timestamp, URL FROM " + stepTable

	if params.Where != "" {
		query += " WHERE " + params.Where
	}

	if params.OrderBy != "" {
		query += " ORDER BY " + params.OrderBy
	} else {
		query += " ORDER BY RunID, StepID"
	}

	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", params.Limit)
		if params.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", params.Offset)
		}
	}

	totalCount, err := r.queryTotalCount(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx, query, params.Args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying steps")
	}
	defer rows.Close()

	results, err := scanSteps(rows)
	if err != nil {
		return nil, 0, err
	}

	return results, totalCount, nil
}

func (r *sqliteReader) queryTotalCount(
	ctx context.Context,
	params QueryParams,
) (int, error) {
	var totalCount int

	countQuery := "SELECT COUNT(*) FROM " + stepTable

	if params.Where != "" {
		countQuery += " WHERE " + params.Where
	}

	err := r.DB.QueryRowContext(ctx, countQuery, params.Args...).
		Scan(&totalCount)
	if err != nil {
		return 0, errors.Wrap(err, "counting steps")
	}

	return totalCount, nil
}

func (r *sqliteReader) Step(
	ctx context.Context,
	runID string,
	id int,
) (StepEntry, error) {
	e := StepEntry{}

	err := r.DB.QueryRowContext(ctx,
		"SELECT RunID, StepID, Timestamp, URL FROM "+stepTable+
			" WHERE RunID = ? AND StepID = ?",
		runID, id,
	).Scan(&e.RunID, &e.StepID, &e.Timestamp, &e.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return e, errors.Wrapf(ErrStepNotRecorded, "step %d of run %s",
			id, runID)
	}

	if err != nil {
		return e, errors.Wrap(err, "reading step")
	}

	return e, nil
}

func scanSteps(rows *sql.Rows) ([]StepEntry, error) {
	var results []StepEntry

	for rows.Next() {
		e := StepEntry{}

		err := rows.Scan(&e.RunID, &e.StepID, &e.Timestamp, &e.URL)
		if err != nil {
			return nil, errors.Wrap(err, "scanning step")
		}

		results = append(results, e)
	}

	return results, errors.Wrap(rows.Err(), "iterating steps")
}

func (r *sqliteReader) Close() error {
	return r.DB.Close()
}

package storage

import "errors"

var (
	// ErrNotFound is returned when a run, dataset or progress record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a tick (dataset_id, ts), feature row
	// (run_id, row_index), run or alert event is inserted twice. The batch
	// that contained it is not applied.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned for an empty dataset or run ID, or a nil record.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSchemaIncomplete is returned when a table the stores need is missing
	// after migrations have run.
	ErrSchemaIncomplete = errors.New("storage schema incomplete")
)

package importer

import (
	"fmt"
	"strings"
)

// SchemaError is fatal: the CSV header is missing required columns. The job
// fails immediately with zero rows processed.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("csv header missing required columns: %s", strings.Join(e.Missing, ", "))
}

// BatchCommitError is returned when a batch could not be committed after
// exhausting its retry budget. It is fatal for the job but preserves the
// effects of previously committed batches.
type BatchCommitError struct {
	Batch    int
	Attempts int
	Err      error
}

func (e *BatchCommitError) Error() string {
	return fmt.Sprintf("batch %d failed after %d attempts: %v", e.Batch, e.Attempts, e.Err)
}

func (e *BatchCommitError) Unwrap() error {
	return e.Err
}

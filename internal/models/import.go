package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of an import job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// Terminal reports whether the status is a final state
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

// RowError represents a non-fatal error for a single CSV row.
// Rows with errors are skipped and counted, never abort the import.
type RowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Row error codes
const (
	RowErrCodeMalformed  = "MALFORMED_ROW"
	RowErrCodeInvalidKey = "INVALID_KEY"
	RowErrCodeTooLong    = "FIELD_TOO_LONG"
)

// ImportJob is the point-in-time view of one import run. It is produced by
// the progress tracker's snapshot and is safe to hand to pollers as-is.
type ImportJob struct {
	ID           uuid.UUID  `json:"id"`
	SourceRef    string     `json:"sourceRef"`
	Status       JobStatus  `json:"status"`
	TotalRows    int64      `json:"totalRows"`
	RowsRead     int64      `json:"rowsRead"`
	RowsValid    int64      `json:"rowsValid"`
	RowsInvalid  int64      `json:"rowsInvalid"`
	RowsUpserted int64      `json:"rowsUpserted"`
	Errors       []RowError `json:"errors,omitempty"`
	Message      string     `json:"message,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// PercentComplete derives progress from the row counters. Returns 0 when the
// total is not yet known.
func (j *ImportJob) PercentComplete() int {
	if j.TotalRows <= 0 {
		return 0
	}
	pct := int(j.RowsRead * 100 / j.TotalRows)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// StartImportResponse is returned on job submission
type StartImportResponse struct {
	JobID uuid.UUID `json:"jobId"`
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// ProductImportColumns returns the column definitions for product import
func ProductImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "sku", Description: "Unique product SKU (case-insensitive)", Required: true, Type: "string", Example: "TSH-BLU-001"},
		{Name: "name", Description: "Product name", Required: true, Type: "string", Example: "Blue Cotton T-Shirt"},
		{Name: "description", Description: "Product description", Required: true, Type: "string", Example: "Soft cotton tee"},
		{Name: "active", Description: "Active flag (true/false/1/0, defaults to true)", Required: false, Type: "boolean", Example: "true"},
	}
}

// ProductImportTemplate returns the template definition for products
func ProductImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "1.0",
		Columns: ProductImportColumns(),
	}
}

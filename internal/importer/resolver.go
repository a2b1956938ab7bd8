package importer

import (
	"fmt"
	"strings"

	"product-importer/internal/models"
)

// MaxFieldLen caps sku and name lengths, matching the store's column width
const MaxFieldLen = 255

// ValidatedProduct is a row that passed validation. SKUNormalized is the
// deduplication identity; SKU preserves the casing from the file for display.
type ValidatedProduct struct {
	SKU           string
	SKUNormalized string
	Name          string
	Description   string
	Active        bool
}

// NormalizeSKU produces the canonical dedup key: surrounding whitespace
// trimmed, then case-folded. Deterministic, so re-imports of the same file
// resolve to the same keys.
func NormalizeSKU(sku string) string {
	return strings.ToLower(strings.TrimSpace(sku))
}

// Resolve validates a raw row and produces the product destined for the
// store. A nil RowError means the row is valid.
func Resolve(raw RawRow) (ValidatedProduct, *models.RowError) {
	normalized := NormalizeSKU(raw.SKU)
	if normalized == "" {
		return ValidatedProduct{}, &models.RowError{
			Line:    raw.Line,
			Field:   "sku",
			Code:    models.RowErrCodeInvalidKey,
			Message: "sku is empty",
		}
	}
	if len(normalized) > MaxFieldLen {
		return ValidatedProduct{}, &models.RowError{
			Line:    raw.Line,
			Field:   "sku",
			Code:    models.RowErrCodeTooLong,
			Message: fmt.Sprintf("sku exceeds %d characters", MaxFieldLen),
		}
	}
	if len(raw.Name) > MaxFieldLen {
		return ValidatedProduct{}, &models.RowError{
			Line:    raw.Line,
			Field:   "name",
			Code:    models.RowErrCodeTooLong,
			Message: fmt.Sprintf("name exceeds %d characters", MaxFieldLen),
		}
	}

	return ValidatedProduct{
		SKU:           strings.TrimSpace(raw.SKU),
		SKUNormalized: normalized,
		Name:          raw.Name,
		Description:   raw.Description,
		Active:        parseActive(raw.Active),
	}, nil
}

// parseActive interprets boolean-like values; anything absent or
// unparseable defaults to active=true.
func parseActive(value string) bool {
	switch strings.ToLower(value) {
	case "false", "0":
		return false
	default:
		return true
	}
}

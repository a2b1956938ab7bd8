package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a catalog product. The case-folded SKU is the
// deduplication identity: two SKUs that differ only in casing map to the
// same row, while the display SKU keeps the casing from the last import.
type Product struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	SKU           string    `json:"sku" gorm:"column:sku;not null"`
	SKUNormalized string    `json:"-" gorm:"column:sku_normalized;not null;uniqueIndex"`
	Name          string    `json:"name" gorm:"not null"`
	Description   string    `json:"description" gorm:"type:text"`
	Active        bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt     time.Time `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt     time.Time `json:"updatedAt" gorm:"column:updated_at"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	SKU         string  `json:"sku" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// UpdateProductRequest represents a request to update a product
type UpdateProductRequest struct {
	SKU         *string `json:"sku,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// ListProductsRequest represents product listing filters
type ListProductsRequest struct {
	Query  string `form:"q"`
	Active *bool  `form:"active"`
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=25"`
}

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

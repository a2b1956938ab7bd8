package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"product-importer/internal/importer"
	"product-importer/internal/models"
)

type ProductsRepository struct {
	db *gorm.DB
}

func NewProductsRepository(db *gorm.DB) *ProductsRepository {
	return &ProductsRepository{db: db}
}

// Ping verifies the store is reachable before a job starts processing rows
func (r *ProductsRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// UpsertBatch applies one batch as a single atomic INSERT ... ON CONFLICT
// keyed on the normalized SKU. Existing rows get name, description, active
// and the display SKU overwritten; absent keys are inserted. The caller
// guarantees the batch holds no duplicate normalized SKUs.
func (r *ProductsRepository) UpsertBatch(ctx context.Context, validated []importer.ValidatedProduct) (int64, error) {
	if len(validated) == 0 {
		return 0, nil
	}

	now := time.Now()
	products := make([]models.Product, len(validated))
	for i, v := range validated {
		products[i] = models.Product{
			ID:            uuid.New(),
			SKU:           v.SKU,
			SKUNormalized: v.SKUNormalized,
			Name:          v.Name,
			Description:   v.Description,
			Active:        v.Active,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sku_normalized"}},
		DoUpdates: clause.AssignmentColumns([]string{"sku", "name", "description", "active", "updated_at"}),
	}).Create(&products)

	if result.Error != nil {
		return 0, fmt.Errorf("batch upsert failed: %w", result.Error)
	}
	return int64(len(products)), nil
}

// GetProducts retrieves products with substring search, active filter and
// pagination, newest updates first
func (r *ProductsRepository) GetProducts(ctx context.Context, req *models.ListProductsRequest) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{})

	if q := strings.TrimSpace(req.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(sku) LIKE ? OR LOWER(name) LIKE ? OR LOWER(description) LIKE ?",
			like, like, like,
		)
	}
	if req.Active != nil {
		query = query.Where("active = ?", *req.Active)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (req.Page - 1) * req.Limit
	if err := query.Order("updated_at DESC").Offset(offset).Limit(req.Limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetProductByID retrieves a product by ID
func (r *ProductsRepository) GetProductByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", productID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct creates a single product. The normalized SKU must already
// be set; a conflict with an existing key surfaces as a duplicate error.
func (r *ProductsRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateProduct applies partial updates to a product
func (r *ProductsRepository) UpdateProduct(ctx context.Context, productID uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteProduct deletes a product by ID
func (r *ProductsRepository) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", productID).Delete(&models.Product{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAllProducts purges the whole table in one statement. This is the
// bulk-delete operation, intentionally not row-by-row.
func (r *ProductsRepository) DeleteAllProducts(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Exec("DELETE FROM products")
	return result.RowsAffected, result.Error
}

// IsDuplicateKeyError reports whether the error is a unique constraint hit
func IsDuplicateKeyError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate")
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"product-importer/internal/importer"
	"product-importer/internal/models"
	"product-importer/internal/notify"
	"product-importer/internal/repository"
)

type ProductsHandler struct {
	repo       *repository.ProductsRepository
	dispatcher *notify.Dispatcher
	logger     *logrus.Entry
}

func NewProductsHandler(repo *repository.ProductsRepository, dispatcher *notify.Dispatcher, logger *logrus.Logger) *ProductsHandler {
	return &ProductsHandler{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger.WithField("component", "products-handler"),
	}
}

// GetProducts lists products with search, active filter and pagination
// GET /api/v1/products
func (h *ProductsHandler) GetProducts(c *gin.Context) {
	var req models.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 25
	}

	products, total, err := h.repo.GetProducts(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    products,
		"pagination": gin.H{
			"page":  req.Page,
			"limit": req.Limit,
			"total": total,
		},
	})
}

// GetProduct retrieves a single product by ID
// GET /api/v1/products/:id
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "INVALID_ID", "Product ID must be a valid UUID")
		return
	}

	product, err := h.repo.GetProductByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
			return
		}
		h.fail(c, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: product})
}

// CreateProduct creates a new product
// POST /api/v1/products
func (h *ProductsHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	normalized := importer.NormalizeSKU(req.SKU)
	if normalized == "" {
		h.fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "SKU must not be empty")
		return
	}

	product := &models.Product{
		SKU:           req.SKU,
		SKUNormalized: normalized,
		Name:          req.Name,
		Active:        true,
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := h.repo.CreateProduct(c.Request.Context(), product); err != nil {
		if repository.IsDuplicateKeyError(err) {
			h.fail(c, http.StatusConflict, "DUPLICATE_SKU", "A product with this SKU already exists")
			return
		}
		h.fail(c, http.StatusInternalServerError, "CREATE_FAILED", err.Error())
		return
	}

	go h.dispatcher.Trigger(context.Background(), models.WebhookEventProductCreated, product)

	c.JSON(http.StatusCreated, models.SuccessResponse{Success: true, Data: product})
}

// UpdateProduct applies partial updates to a product
// PUT /api/v1/products/:id
func (h *ProductsHandler) UpdateProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "INVALID_ID", "Product ID must be a valid UUID")
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	updates := make(map[string]interface{})
	if req.SKU != nil {
		normalized := importer.NormalizeSKU(*req.SKU)
		if normalized == "" {
			h.fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "SKU must not be empty")
			return
		}
		updates["sku"] = *req.SKU
		updates["sku_normalized"] = normalized
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		h.fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "No fields to update")
		return
	}

	if err := h.repo.UpdateProduct(c.Request.Context(), productID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
			return
		}
		if repository.IsDuplicateKeyError(err) {
			h.fail(c, http.StatusConflict, "DUPLICATE_SKU", "A product with this SKU already exists")
			return
		}
		h.fail(c, http.StatusInternalServerError, "UPDATE_FAILED", err.Error())
		return
	}

	product, err := h.repo.GetProductByID(c.Request.Context(), productID)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}

	go h.dispatcher.Trigger(context.Background(), models.WebhookEventProductUpdated, product)

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: product})
}

// DeleteProduct deletes a product by ID
// DELETE /api/v1/products/:id
func (h *ProductsHandler) DeleteProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "INVALID_ID", "Product ID must be a valid UUID")
		return
	}

	if err := h.repo.DeleteProduct(c.Request.Context(), productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
			return
		}
		h.fail(c, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}

	message := "Product deleted"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &message})
}

// DeleteAllProducts purges the product table. Single-statement full-table
// delete, not row-by-row.
// DELETE /api/v1/products
func (h *ProductsHandler) DeleteAllProducts(c *gin.Context) {
	deleted, err := h.repo.DeleteAllProducts(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}

	h.logger.WithField("deleted", deleted).Warn("All products purged")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"deleted": deleted,
	})
}

func (h *ProductsHandler) fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

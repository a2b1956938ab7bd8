package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"product-importer/internal/importer"
	"product-importer/internal/models"
	"product-importer/internal/worker"
)

type ImportHandler struct {
	service   *importer.Service
	pool      *worker.Pool
	uploadDir string
	logger    *logrus.Entry
}

func NewImportHandler(service *importer.Service, pool *worker.Pool, uploadDir string, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{
		service:   service,
		pool:      pool,
		uploadDir: uploadDir,
		logger:    logger.WithField("component", "import-handler"),
	}
}

// StartImport accepts a CSV upload, creates an import job and submits it to
// the worker pool. The upload is spooled to disk first so the request can
// return immediately; ingestion streams from the file on a worker.
// POST /api/v1/imports
func (h *ImportHandler) StartImport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.fail(c, http.StatusBadRequest, "FILE_REQUIRED", "Please upload a CSV file")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		h.fail(c, http.StatusBadRequest, "INVALID_FORMAT", "Only CSV files are supported")
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.fail(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to prepare upload directory")
		return
	}

	path := filepath.Join(h.uploadDir, uuid.New().String()+".csv")
	dest, err := os.Create(path)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store upload")
		return
	}
	if _, err := io.Copy(dest, file); err != nil {
		dest.Close()
		os.Remove(path)
		h.fail(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store upload")
		return
	}
	dest.Close()

	jobID := h.service.CreateJob(path)
	if err := h.pool.Submit(func(ctx context.Context) {
		_ = h.service.Run(ctx, jobID)
	}); err != nil {
		os.Remove(path)
		h.fail(c, http.StatusServiceUnavailable, "QUEUE_FULL", "Import queue is full, try again later")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_id":   jobID.String(),
		"filename": header.Filename,
	}).Info("Import job submitted")

	c.JSON(http.StatusAccepted, models.SuccessResponse{
		Success: true,
		Data:    models.StartImportResponse{JobID: jobID},
	})
}

// GetImportStatus returns a point-in-time snapshot of the job. Callable at
// any moment during the run; it has no side effects.
// GET /api/v1/imports/:id
func (h *ImportHandler) GetImportStatus(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "INVALID_ID", "Job ID must be a valid UUID")
		return
	}

	job, err := h.service.Status(jobID)
	if err != nil {
		if errors.Is(err, importer.ErrJobNotFound) {
			h.fail(c, http.StatusNotFound, "NOT_FOUND", "Import job not found")
			return
		}
		h.fail(c, http.StatusInternalServerError, "STATUS_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: job})
}

// CancelImport requests a cooperative stop. Returns immediately; the job
// observes the request at the next batch boundary.
// POST /api/v1/imports/:id/cancel
func (h *ImportHandler) CancelImport(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "INVALID_ID", "Job ID must be a valid UUID")
		return
	}

	if err := h.service.Cancel(jobID); err != nil {
		if errors.Is(err, importer.ErrJobNotFound) {
			h.fail(c, http.StatusNotFound, "NOT_FOUND", "Import job not found")
			return
		}
		h.fail(c, http.StatusInternalServerError, "CANCEL_FAILED", err.Error())
		return
	}

	message := "Cancellation requested"
	c.JSON(http.StatusAccepted, models.SuccessResponse{Success: true, Message: &message})
}

// GetImportTemplate returns the import template definition or file
// GET /api/v1/imports/template
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.ProductImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate generates and downloads a CSV template (headers only)
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)
}

// generateXLSXTemplate generates and downloads an Excel template with a
// header row and an instructions sheet describing each column
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		if col.Required {
			headerText = col.Name + " *"
		}
		f.SetCellValue(sheetName, cell, headerText)

		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 24)
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Product Import Instructions")
	f.SetCellValue("Instructions", "A3", "SKUs are matched case-insensitively: re-importing a SKU overwrites its name, description and active flag.")
	f.SetCellValue("Instructions", "A4", "Rows with an empty SKU are skipped and reported; they do not abort the import.")

	f.SetCellValue("Instructions", "A6", "Column")
	f.SetCellValue("Instructions", "B6", "Description")
	f.SetCellValue("Instructions", "C6", "Required")
	f.SetCellValue("Instructions", "D6", "Example")
	for i, col := range template.Columns {
		row := i + 7
		cellA, _ := excelize.CoordinatesToCellName(1, row)
		cellB, _ := excelize.CoordinatesToCellName(2, row)
		cellC, _ := excelize.CoordinatesToCellName(3, row)
		cellD, _ := excelize.CoordinatesToCellName(4, row)
		f.SetCellValue("Instructions", cellA, col.Name)
		f.SetCellValue("Instructions", cellB, col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", cellC, required)
		f.SetCellValue("Instructions", cellD, col.Example)
	}
	f.SetColWidth("Instructions", "A", "A", 15)
	f.SetColWidth("Instructions", "B", "B", 70)
	f.SetColWidth("Instructions", "C", "C", 12)
	f.SetColWidth("Instructions", "D", "D", 25)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")

	f.Write(c.Writer)
}

func (h *ImportHandler) fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

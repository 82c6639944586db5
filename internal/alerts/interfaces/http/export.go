package http

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alertapp "solarwatch/internal/alerts/application"
	alerts "solarwatch/internal/alerts/domain"
	"solarwatch/internal/observability/metrics"
)

const exportListLimit = 500

// ExportHandler serves alert history downloads as CSV, XLSX and PDF.
type ExportHandler struct {
	store *alertapp.WatchedStore
}

// NewExportHandler constructs an export handler.
func NewExportHandler(store *alertapp.WatchedStore) (*ExportHandler, error) {
	if store == nil {
		return nil, errors.New("alert export: nil store")
	}
	return &ExportHandler{store: store}, nil
}

// ServeHTTP handles GET /api/v1/exports/alerts.{csv,xlsx,pdf}.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var format string
	switch r.URL.Path {
	case "/api/v1/exports/alerts.csv":
		format = "csv"
	case "/api/v1/exports/alerts.xlsx":
		format = "xlsx"
	case "/api/v1/exports/alerts.pdf":
		format = "pdf"
	default:
		http.NotFound(w, r)
		return
	}

	history, err := h.store.List(r.Context(), exportListLimit)
	if err != nil {
		metrics.IncExport(format, "error")
		http.Error(w, "list alerts failed", http.StatusInternalServerError)
		return
	}

	var body []byte
	var contentType string
	switch format {
	case "csv":
		body, err = BuildAlertsCSV(history)
		contentType = "text/csv"
	case "xlsx":
		body, err = BuildAlertsXLSX(history)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		body, err = BuildAlertsPDF(history)
		contentType = "application/pdf"
	}
	if err != nil {
		metrics.IncExport(format, "error")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	metrics.IncExport(format, "success")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=alerts."+format)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// BuildAlertsCSV renders alert history as CSV.
func BuildAlertsCSV(history []alerts.VoltageAlert) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"id", "started_at", "ended_at", "duration_seconds", "min_voltage", "avg_voltage", "is_active"}); err != nil {
		return nil, err
	}
	for _, alert := range history {
		record := []string{
			alert.ID,
			alert.StartedAt.UTC().Format(time.RFC3339),
			formatTime(alert.EndedAt),
			formatDuration(alert),
			fmt.Sprintf("%.2f", alert.MinVoltage),
			formatAvg(alert),
			strconv.FormatBool(alert.IsActive),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsPDF renders a minimal PDF alert report.
func BuildAlertsPDF(history []alerts.VoltageAlert) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Low Voltage Alert Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alerts: %d", len(history)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(45, 6, "Started", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Ended", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Duration (s)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Min (V)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Avg (V)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, alert := range history {
		pdf.CellFormat(45, 6, alert.StartedAt.UTC().Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, formatTime(alert.EndedAt), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, formatDuration(alert), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", alert.MinVoltage), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, formatAvg(alert), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsXLSX renders alert history as a workbook.
func BuildAlertsXLSX(history []alerts.VoltageAlert) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "alerts"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Started", "Ended", "Duration (s)", "Min Voltage (V)", "Avg Voltage (V)", "Active"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, alert := range history {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), alert.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), alert.StartedAt.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), formatTime(alert.EndedAt))
		if alert.Closed() {
			_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), alert.DurationSeconds)
			_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), alert.AvgVoltage)
		}
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), alert.MinVoltage)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), alert.IsActive)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatDuration(alert alerts.VoltageAlert) string {
	if !alert.Closed() {
		return ""
	}
	return strconv.FormatInt(alert.DurationSeconds, 10)
}

func formatAvg(alert alerts.VoltageAlert) string {
	if !alert.Closed() {
		return ""
	}
	return fmt.Sprintf("%.2f", alert.AvgVoltage)
}

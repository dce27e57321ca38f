package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/indicadores/apiserver/internal/services"
)

const reportKeyPrefix = "reports/"

// ReportHandler serves previously exported indicator reports.
type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// ReportRouter registers report download routes on the given router.
func ReportRouter(r chi.Router, reportService *services.ReportService) {
	handler := NewReportHandler(reportService)

	r.Get("/*", handler.DownloadReport)
}

func reportLocation(key string) string {
	return "/api/reportes/" + strings.TrimPrefix(key, reportKeyPrefix)
}

func (h *ReportHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	key := reportKeyPrefix + chi.URLParam(r, "*")

	rc, err := h.reportService.Open(r.Context(), callerFrom(r), key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.WarnContext(r.Context(), "report download interrupted", "key", key, "error", err)
	}
}

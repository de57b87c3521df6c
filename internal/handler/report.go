package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/listings-portal/internal/model"
	"github.com/sakif/listings-portal/internal/service"
)

// ReportHandler generates, lists and serves CSV exports.
type ReportHandler struct {
	reports *service.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(reports *service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

type generateReportRequest struct {
	Type string `json:"type"`
}

type generateReportResponse struct {
	Message string        `json:"message"`
	Report  *model.Report `json:"report"`
}

// HandleGenerate writes a new export.
//
// HTTP: POST /api/reports/generate
// REQUEST BODY: {"type": "open"|"closed"}
// RESPONSE:     200 {"message": "...", "report": {"filename","path","count"}}
func (h *ReportHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	rep, err := h.reports.Generate(r.Context(), req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateReportResponse{
		Message: fmt.Sprintf("Report generated with %d listings", rep.Count),
		Report:  rep,
	})
}

// HandleList returns the exports on disk, newest first.
//
// HTTP: GET /api/reports
func (h *ReportHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleDownload streams one export as an attachment.
//
// HTTP: GET /api/reports/download/{filename}
//
// The filename is validated by the service before it touches the
// filesystem, so "../" and friends end as a 400, never as a read.
func (h *ReportHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	f, err := h.reports.Open(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("report download interrupted",
			slog.String("filename", name),
			slog.String("error", err.Error()),
		)
	}
}

package http

import (
	"net/http"

	"budgeting/internal/export"
	"budgeting/internal/log"
)

// handleExport serves the full, unfiltered ledger as a download. The buffer
// lives only for this request.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.ledger.ExportJSON(r.Context())
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Ledger exported",
		log.FieldOperation, log.OpExport, "bytes", len(data))

	NewResponse().
		Body(export.ContentType, data).
		Attachment(export.Filename).
		Write(w)
}

// handleSheetsExport writes the full ledger to the configured spreadsheet.
func (s *Server) handleSheetsExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		ServiceUnavailableError("sheets export not configured").Write(w)
		return
	}

	seq, err := s.ledger.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	res, err := s.exporter.Export(r.Context(), seq)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Sheets export failed",
			log.NewFields().WithOperation(log.OpExport).WithError(err).ToSlice()...)
		ErrorResponse(http.StatusBadGateway, "sheets export failed").Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Ledger exported to sheets",
		log.FieldOperation, log.OpExport,
		"rows", res.Rows,
		"range", res.UpdatedRange)

	NewResponse().JSON(res).Write(w)
}

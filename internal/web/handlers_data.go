package web

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/JonMunkholm/chemequip/internal/report"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// handleData lists the equipment of ?upload_id= or the latest upload.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	user, uploadID, ok := s.scope(w, r)
	if !ok {
		return
	}

	items, err := s.service.Equipment(r.Context(), user, uploadID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleSummary returns statistics for ?upload_id= or the latest upload.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	user, uploadID, ok := s.scope(w, r)
	if !ok {
		return
	}

	summary, err := s.service.Summary(r.Context(), user, uploadID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleHistory lists the caller's retained uploads, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	uploads, err := s.service.History(r.Context(), user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	views := make([]uploadView, len(uploads))
	for i, u := range uploads {
		views[i] = toUploadView(u)
	}
	writeJSON(w, http.StatusOK, views)
}

// handleUploadDetail returns one upload with its equipment.
func (s *Server) handleUploadDetail(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	uploadID, err := uuid.Parse(chi.URLParam(r, "uploadID"))
	if err != nil {
		// Not a UUID, so it cannot name one of the caller's uploads.
		respondError(w, r, core.ErrNotFound)
		return
	}

	detail, err := s.service.UploadDetail(r.Context(), user, uploadID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleReport streams a PDF report for ?upload_id= or the latest upload.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	user, uploadID, ok := s.scope(w, r)
	if !ok {
		return
	}

	data, err := s.service.Report(r.Context(), user, uploadID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Render fully before writing so a failure can still produce JSON.
	var buf bytes.Buffer
	if err := report.Render(&buf, data); err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// scope resolves the caller and the optional upload_id. It writes the
// error response itself and returns ok=false on failure.
func (s *Server) scope(w http.ResponseWriter, r *http.Request) (core.User, *uuid.UUID, bool) {
	user, err := requestUser(r)
	if err != nil {
		respondError(w, r, err)
		return core.User{}, nil, false
	}
	uploadID, err := parseUploadID(r)
	if err != nil {
		respondError(w, r, err)
		return core.User{}, nil, false
	}
	return user, uploadID, true
}

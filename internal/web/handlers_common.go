package web

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/google/uuid"
)

// maxJSONBody caps auth request bodies.
const maxJSONBody = 1 << 20

// healthTimeout bounds the store ping in /healthz.
const healthTimeout = 2 * time.Second

// userView is the public part of a user.
type userView struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

func toUserView(u core.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email}
}

// uploadView is an upload as listed in history and upload responses.
type uploadView struct {
	ID             uuid.UUID `json:"id"`
	Filename       string    `json:"filename"`
	UploadedAt     time.Time `json:"uploaded_at"`
	RecordCount    int       `json:"record_count"`
	EquipmentCount int       `json:"equipment_count"`
}

// toUploadView converts an upload. Rows are only ever written together
// with the upload, so the equipment count equals the record count.
func toUploadView(u core.Upload) uploadView {
	return uploadView{
		ID:             u.ID,
		Filename:       u.Filename,
		UploadedAt:     u.UploadedAt,
		RecordCount:    u.RecordCount,
		EquipmentCount: u.RecordCount,
	}
}

// parseUploadID reads the optional upload_id query parameter.
// Returns nil when absent.
func parseUploadID(r *http.Request) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("upload_id"))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, core.ValidationError{Field: "upload_id", Message: "must be a UUID"}
	}
	return &id, nil
}

// decodeFields reads string fields from a JSON object or a form body.
func decodeFields(w http.ResponseWriter, r *http.Request, names ...string) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	out := make(map[string]string, len(names))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxJSONBody); err != nil && err != http.ErrNotMultipart {
			return nil, core.ValidationError{Message: fmt.Sprintf("invalid form body: %v", err)}
		}
		for _, n := range names {
			out[n] = r.FormValue(n)
		}
	default:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, core.ValidationError{Message: "request body must be a JSON object"}
		}
		for _, n := range names {
			if v, ok := body[n].(string); ok {
				out[n] = v
			}
		}
	}
	return out, nil
}

// handleHealth pings the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		respondError(w, r, fmt.Errorf("health check: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadStatusResponse struct {
	core.UploadGateStatus
	KeepUploads int `json:"keep_uploads"`
}

// handleUploadStatus returns the upload gate state and the retention window.
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, uploadStatusResponse{
		UploadGateStatus: s.service.UploadGateStatus(),
		KeepUploads:      s.service.KeepUploads(),
	})
}

package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/google/uuid"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// uploadResponse is returned after a successful upload.
type uploadResponse struct {
	Message        string           `json:"message"`
	Upload         uploadView       `json:"upload"`
	EquipmentCount int              `json:"equipment_count"`
	Stats          core.IngestStats `json:"stats"`
	Pruned         []uuid.UUID      `json:"pruned,omitempty"`
}

// handleUpload ingests a multipart "file" field as a new upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondError(w, r, formError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, formError(err))
		return
	}
	defer file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.Upload(ctx, user, header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Message:        "Upload successful",
		Upload:         toUploadView(result.Upload),
		EquipmentCount: result.Upload.RecordCount,
		Stats:          result.Stats,
		Pruned:         result.Pruned,
	})
}

// formError classifies a multipart parsing failure.
func formError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, maxErr.Limit)
	case errors.Is(err, multipart.ErrMessageTooLarge),
		strings.Contains(err.Error(), "request body too large"):
		return fmt.Errorf("%w: %v", core.ErrFileTooLarge, err)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return core.ErrNoFile
	}
	return &core.ParseError{Err: fmt.Errorf("multipart body: %w", err)}
}

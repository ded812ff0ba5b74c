package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/chemequip/internal/config"
	"github.com/JonMunkholm/chemequip/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service provides the core business logic for equipment uploads.
type Service struct {
	store   Store
	gate    *UploadGate
	metrics Recorder
	now     nowFunc

	keepUploads   int
	ingest        IngestOptions
	uploadTimeout time.Duration
	tokenTTL      time.Duration
	bcryptCost    int
}

// NewService creates a new Service instance backed by store.
func NewService(store Store, cfg *config.Config) (*Service, error) {
	if store == nil {
		return nil, errors.New("nil store")
	}

	policy, err := ParseNumericPolicy(cfg.Upload.NumericPolicy)
	if err != nil {
		return nil, fmt.Errorf("upload config: %w", err)
	}

	keep := cfg.Upload.KeepUploads
	if keep <= 0 {
		keep = DefaultKeepUploads
	}

	cost := cfg.Security.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &Service{
		store:         store,
		gate:          NewUploadGate(cfg.Upload.MaxWaitTime),
		metrics:       nopRecorder{},
		now:           time.Now,
		keepUploads:   keep,
		ingest:        IngestOptions{Numeric: policy},
		uploadTimeout: cfg.Upload.Timeout,
		tokenTTL:      cfg.Security.TokenTTL,
		bcryptCost:    cost,
	}, nil
}

// SetRecorder installs a metrics recorder. Passing nil restores the no-op.
func (s *Service) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.metrics = r
}

// SetClock replaces the time source used for upload and token timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// KeepUploads returns the retention window.
func (s *Service) KeepUploads() int {
	return s.keepUploads
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Upload ingests a CSV for user, stores it as a new batch and prunes the
// user's older batches. The batch stays committed even when pruning fails;
// that error is still returned to the caller.
func (s *Service) Upload(ctx context.Context, user User, filename string, r io.Reader) (UploadResult, error) {
	start := s.now()
	logger := logging.WithFields(ctx,
		"user_id", user.ID,
		"filename", filename,
		"ip", GetIPAddressFromContext(ctx),
		"user_agent", GetUserAgentFromContext(ctx),
	)

	result, err := s.upload(ctx, user, filename, r)
	if err != nil {
		code := MapError(err).Code
		s.metrics.UploadFailed(code)
		if IsClientError(err) {
			logger.Info("upload rejected", "error", err, "code", code)
		} else {
			logger.Error("upload failed", "error", err, "code", code)
		}
		return result, err
	}

	result.Duration = s.now().Sub(start)
	s.metrics.UploadSucceeded(result.Stats, result.Duration)
	if len(result.Pruned) > 0 {
		s.metrics.UploadsPruned(len(result.Pruned))
	}

	logger.Info("upload completed",
		"upload_id", result.Upload.ID,
		"records", result.Upload.RecordCount,
		"dropped", result.Stats.Dropped,
		"malformed", result.Stats.Malformed,
		"unclassified", result.Stats.Unclassified,
		"pruned", len(result.Pruned),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (s *Service) upload(ctx context.Context, user User, filename string, r io.Reader) (UploadResult, error) {
	var result UploadResult

	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return result, ErrNotCSV
	}

	release, err := s.gate.Acquire(ctx, user.ID)
	if err != nil {
		return result, err
	}
	defer release()

	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}

	records, stats, err := ParseEquipmentCSVWithStats(r, s.ingest)
	result.Stats = stats
	if err != nil {
		return result, err
	}
	if len(records) == 0 {
		return result, ErrEmptyResult
	}

	upload, err := s.store.CreateUpload(ctx, Upload{
		ID:          uuid.New(),
		UserID:      user.ID,
		Filename:    filename,
		UploadedAt:  s.now(),
		RecordCount: len(records),
	}, records)
	if err != nil {
		return result, fmt.Errorf("create upload: %w", err)
	}
	result.Upload = upload

	pruned, err := PruneUploads(ctx, s.store, user.ID, s.keepUploads)
	for _, p := range pruned {
		result.Pruned = append(result.Pruned, p.ID)
	}
	if err != nil {
		return result, fmt.Errorf("retention: %w", err)
	}

	return result, nil
}

// resolveUpload returns the upload named by uploadID (which must belong to
// user), or the user's latest upload when uploadID is nil. found is false
// only when uploadID is nil and the user has no uploads.
func (s *Service) resolveUpload(ctx context.Context, user User, uploadID *uuid.UUID) (upload Upload, found bool, err error) {
	if uploadID != nil {
		upload, err = s.store.GetUpload(ctx, user.ID, *uploadID)
		if err != nil {
			return Upload{}, false, fmt.Errorf("upload not found: %w", err)
		}
		return upload, true, nil
	}

	upload, err = s.store.LatestUpload(ctx, user.ID)
	if errors.Is(err, ErrNotFound) {
		return Upload{}, false, nil
	}
	if err != nil {
		return Upload{}, false, fmt.Errorf("latest upload: %w", err)
	}
	return upload, true, nil
}

// Equipment lists the rows of an upload, or of the latest upload when
// uploadID is nil. A user without uploads gets an empty list.
func (s *Service) Equipment(ctx context.Context, user User, uploadID *uuid.UUID) ([]Equipment, error) {
	upload, found, err := s.resolveUpload(ctx, user, uploadID)
	if err != nil || !found {
		return []Equipment{}, err
	}

	items, err := s.store.ListEquipment(ctx, upload.ID)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	return items, nil
}

// Summary computes statistics for an upload, or the latest upload when
// uploadID is nil. A user without uploads gets a zero summary.
func (s *Service) Summary(ctx context.Context, user User, uploadID *uuid.UUID) (SummaryStatistics, error) {
	items, err := s.Equipment(ctx, user, uploadID)
	if err != nil {
		return SummaryStatistics{}, err
	}
	return Summarize(Records(items)), nil
}

// History returns the user's retained uploads, newest first.
func (s *Service) History(ctx context.Context, user User) ([]Upload, error) {
	uploads, err := s.store.ListUploads(ctx, user.ID, s.keepUploads)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	sortNewestFirst(uploads)
	return uploads, nil
}

// UploadDetail returns one of the user's uploads with its equipment.
func (s *Service) UploadDetail(ctx context.Context, user User, uploadID uuid.UUID) (UploadDetail, error) {
	upload, _, err := s.resolveUpload(ctx, user, &uploadID)
	if err != nil {
		return UploadDetail{}, err
	}

	items, err := s.store.ListEquipment(ctx, upload.ID)
	if err != nil {
		return UploadDetail{}, fmt.Errorf("list equipment: %w", err)
	}
	return UploadDetail{Upload: upload, Equipment: items}, nil
}

// ReportData is everything a report renderer needs.
type ReportData struct {
	Upload      Upload
	Equipment   []Equipment
	Summary     SummaryStatistics
	GeneratedAt time.Time
}

// Report gathers report data for an upload, or the latest upload when
// uploadID is nil. Returns ErrNotFound when there is nothing to report.
func (s *Service) Report(ctx context.Context, user User, uploadID *uuid.UUID) (ReportData, error) {
	upload, found, err := s.resolveUpload(ctx, user, uploadID)
	if err != nil {
		return ReportData{}, err
	}
	if !found {
		return ReportData{}, fmt.Errorf("no data available for report: %w", ErrNotFound)
	}

	items, err := s.store.ListEquipment(ctx, upload.ID)
	if err != nil {
		return ReportData{}, fmt.Errorf("list equipment: %w", err)
	}
	if len(items) == 0 {
		return ReportData{}, fmt.Errorf("no equipment data found: %w", ErrNotFound)
	}

	return ReportData{
		Upload:      upload,
		Equipment:   items,
		Summary:     Summarize(Records(items)),
		GeneratedAt: s.now(),
	}, nil
}

// UploadGateStatus returns the current upload gate state.
func (s *Service) UploadGateStatus() UploadGateStatus {
	return s.gate.Status()
}

// WaitForUploads blocks until in-flight uploads finish or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.gate.WaitForDrain(ctx)
}

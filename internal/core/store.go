package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence boundary used by the service.
//
// Implementations must make CreateUpload and DeleteUpload atomic: an upload
// and all of its equipment rows are created or removed together.
// Lookups that find nothing return an error wrapping ErrNotFound.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user User) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)

	CreateToken(ctx context.Context, token Token) error
	GetToken(ctx context.Context, key string) (Token, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	DeleteToken(ctx context.Context, key string) error
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	// CreateUpload persists the batch and its records in one transaction.
	CreateUpload(ctx context.Context, upload Upload, records []EquipmentRecord) (Upload, error)
	GetUpload(ctx context.Context, userID, uploadID uuid.UUID) (Upload, error)
	LatestUpload(ctx context.Context, userID uuid.UUID) (Upload, error)
	// ListUploads returns the user's uploads newest first. limit <= 0 means all.
	ListUploads(ctx context.Context, userID uuid.UUID, limit int) ([]Upload, error)
	// ListEquipment returns an upload's rows ordered by name.
	ListEquipment(ctx context.Context, uploadID uuid.UUID) ([]Equipment, error)
	// DeleteUpload removes the upload and cascades to its equipment rows.
	DeleteUpload(ctx context.Context, uploadID uuid.UUID) error
}

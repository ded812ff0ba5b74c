package postgres

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const uploadColumns = `id, user_id, filename, uploaded_at, record_count`

// equipmentColumns is the COPY column order used by CreateUpload.
var equipmentColumns = []string{"upload_id", "name", "type", "flowrate", "pressure", "temperature"}

// CreateUpload inserts the upload row and bulk-copies its equipment in one
// transaction. Nothing is visible until commit.
func (s *Store) CreateUpload(ctx context.Context, upload core.Upload, records []core.EquipmentRecord) (core.Upload, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Upload{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	upload.RecordCount = len(records)
	const q = `INSERT INTO uploads (id, user_id, filename, uploaded_at, record_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + uploadColumns

	created, err := scanUpload(tx.QueryRow(ctx, q,
		upload.ID, upload.UserID, upload.Filename, upload.UploadedAt, upload.RecordCount))
	if err != nil {
		return core.Upload{}, fmt.Errorf("insert upload: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"equipment"}, equipmentColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{created.ID, r.Name, r.Type, r.Flowrate, r.Pressure, r.Temperature}, nil
		}))
	if err != nil {
		return core.Upload{}, fmt.Errorf("copy equipment: %w", err)
	}
	if int(n) != len(records) {
		return core.Upload{}, fmt.Errorf("copy equipment: wrote %d of %d rows", n, len(records))
	}

	if err := tx.Commit(ctx); err != nil {
		return core.Upload{}, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (s *Store) GetUpload(ctx context.Context, userID, uploadID uuid.UUID) (core.Upload, error) {
	const q = `SELECT ` + uploadColumns + ` FROM uploads WHERE id = $1 AND user_id = $2`

	u, err := scanUpload(s.pool.QueryRow(ctx, q, uploadID, userID))
	if err != nil {
		return core.Upload{}, notFound(err, "get upload")
	}
	return u, nil
}

func (s *Store) LatestUpload(ctx context.Context, userID uuid.UUID) (core.Upload, error) {
	const q = `SELECT ` + uploadColumns + ` FROM uploads
		WHERE user_id = $1
		ORDER BY uploaded_at DESC, id DESC
		LIMIT 1`

	u, err := scanUpload(s.pool.QueryRow(ctx, q, userID))
	if err != nil {
		return core.Upload{}, notFound(err, "latest upload")
	}
	return u, nil
}

func (s *Store) ListUploads(ctx context.Context, userID uuid.UUID, limit int) ([]core.Upload, error) {
	q := `SELECT ` + uploadColumns + ` FROM uploads
		WHERE user_id = $1
		ORDER BY uploaded_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	uploads, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Upload, error) {
		return scanUpload(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return uploads, nil
}

func (s *Store) ListEquipment(ctx context.Context, uploadID uuid.UUID) ([]core.Equipment, error) {
	const q = `SELECT id, upload_id, name, type, flowrate, pressure, temperature
		FROM equipment
		WHERE upload_id = $1
		ORDER BY name, id`

	rows, err := s.pool.Query(ctx, q, uploadID)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Equipment, error) {
		var e core.Equipment
		err := row.Scan(&e.ID, &e.UploadID, &e.Name, &e.Type, &e.Flowrate, &e.Pressure, &e.Temperature)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	if items == nil {
		items = []core.Equipment{}
	}
	return items, nil
}

// DeleteUpload removes an upload; equipment rows go with it via ON DELETE CASCADE.
func (s *Store) DeleteUpload(ctx context.Context, uploadID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM uploads WHERE id = $1`, uploadID)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete upload %s: %w", uploadID, core.ErrNotFound)
	}
	return nil
}

func scanUpload(row interface{ Scan(...any) error }) (core.Upload, error) {
	var u core.Upload
	err := row.Scan(&u.ID, &u.UserID, &u.Filename, &u.UploadedAt, &u.RecordCount)
	return u, err
}

package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// DefaultKeepUploads is the retention window: uploads kept per user.
const DefaultKeepUploads = 5

// PruneUploads keeps the keep most recent uploads for userID and deletes the
// rest, each one atomically together with its equipment rows.
//
// The first deletion failure stops the pass and is returned; uploads already
// deleted stay deleted. Returns the uploads that were removed.
func PruneUploads(ctx context.Context, store Store, userID uuid.UUID, keep int) ([]Upload, error) {
	if keep < 0 {
		keep = 0
	}

	uploads, err := store.ListUploads(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	if len(uploads) <= keep {
		return nil, nil
	}

	sortNewestFirst(uploads)

	var pruned []Upload
	for _, u := range uploads[keep:] {
		if err := store.DeleteUpload(ctx, u.ID); err != nil {
			return pruned, fmt.Errorf("delete upload %s: %w", u.ID, err)
		}
		slog.Debug("pruned upload",
			"user_id", userID,
			"upload_id", u.ID,
			"filename", u.Filename,
			"records", u.RecordCount,
		)
		pruned = append(pruned, u)
	}
	return pruned, nil
}

// sortNewestFirst orders uploads by creation time descending. Uploads with
// identical timestamps are ordered by ID so the result is deterministic.
func sortNewestFirst(uploads []Upload) {
	sort.SliceStable(uploads, func(i, j int) bool {
		a, b := uploads[i], uploads[j]
		if !a.UploadedAt.Equal(b.UploadedAt) {
			return a.UploadedAt.After(b.UploadedAt)
		}
		return a.ID.String() > b.ID.String()
	})
}

// Package memory is an in-process core.Store used by service, handler and
// client tests in place of PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/google/uuid"
)

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	users     map[uuid.UUID]core.User
	tokens    map[string]core.Token
	uploads   map[uuid.UUID]core.Upload
	equipment map[uuid.UUID][]core.Equipment
	nextID    int64

	failures map[string]error
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:     make(map[uuid.UUID]core.User),
		tokens:    make(map[string]core.Token),
		uploads:   make(map[uuid.UUID]core.Upload),
		equipment: make(map[uuid.UUID][]core.Equipment),
		failures:  make(map[string]error),
	}
}

// FailOn makes every later call of the named method return err.
// Pass a nil err to clear it.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// failure must be called with s.mu held.
func (s *Store) failure(method string) error {
	return s.failures[method]
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) CreateUser(_ context.Context, user core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("CreateUser"); err != nil {
		return core.User{}, err
	}
	for _, u := range s.users {
		if u.Username == user.Username {
			return core.User{}, core.ErrUsernameTaken
		}
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) CreateToken(_ context.Context, token core.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("CreateToken"); err != nil {
		return err
	}
	s.tokens[token.Key] = token
	return nil
}

func (s *Store) GetToken(_ context.Context, key string) (core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[key]
	if !ok {
		return core.Token{}, fmt.Errorf("token: %w", core.ErrNotFound)
	}
	return t, nil
}

func (s *Store) DeleteToken(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[key]; !ok {
		return fmt.Errorf("token: %w", core.ErrNotFound)
	}
	delete(s.tokens, key)
	return nil
}

func (s *Store) PurgeExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("PurgeExpiredTokens"); err != nil {
		return 0, err
	}
	var n int64
	for key, t := range s.tokens {
		if t.Expired(now) {
			delete(s.tokens, key)
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateUpload(ctx context.Context, upload core.Upload, records []core.EquipmentRecord) (core.Upload, error) {
	if err := ctx.Err(); err != nil {
		return core.Upload{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("CreateUpload"); err != nil {
		return core.Upload{}, err
	}

	rows := make([]core.Equipment, len(records))
	for i, rec := range records {
		s.nextID++
		rows[i] = core.Equipment{ID: s.nextID, UploadID: upload.ID, EquipmentRecord: rec}
	}

	upload.RecordCount = len(records)
	s.uploads[upload.ID] = upload
	s.equipment[upload.ID] = rows
	return upload, nil
}

func (s *Store) GetUpload(_ context.Context, userID, uploadID uuid.UUID) (core.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.uploads[uploadID]
	if !ok || u.UserID != userID {
		return core.Upload{}, fmt.Errorf("upload %s: %w", uploadID, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) LatestUpload(ctx context.Context, userID uuid.UUID) (core.Upload, error) {
	uploads, err := s.ListUploads(ctx, userID, 1)
	if err != nil {
		return core.Upload{}, err
	}
	if len(uploads) == 0 {
		return core.Upload{}, fmt.Errorf("latest upload: %w", core.ErrNotFound)
	}
	return uploads[0], nil
}

func (s *Store) ListUploads(_ context.Context, userID uuid.UUID, limit int) ([]core.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure("ListUploads"); err != nil {
		return nil, err
	}

	var out []core.Upload
	for _, u := range s.uploads {
		if u.UserID == userID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListEquipment(_ context.Context, uploadID uuid.UUID) ([]core.Equipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.equipment[uploadID]
	out := make([]core.Equipment, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteUpload(_ context.Context, uploadID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("DeleteUpload"); err != nil {
		return err
	}
	if _, ok := s.uploads[uploadID]; !ok {
		return fmt.Errorf("upload %s: %w", uploadID, core.ErrNotFound)
	}
	delete(s.uploads, uploadID)
	delete(s.equipment, uploadID)
	return nil
}

// EquipmentCount returns the number of stored equipment rows across all uploads.
func (s *Store) EquipmentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rows := range s.equipment {
		n += len(rows)
	}
	return n
}

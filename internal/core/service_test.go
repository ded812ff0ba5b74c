package core_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/chemequip/internal/config"
	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/JonMunkholm/chemequip/internal/store/memory"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const csvHeader = "Equipment Name,Type,Flowrate,Pressure,Temperature\n"

// fakeClock hands out strictly increasing timestamps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu        sync.Mutex
	succeeded int
	failed    []string
	pruned    int
	purged    int64
}

func (r *recorder) UploadSucceeded(core.IngestStats, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded++
}

func (r *recorder) UploadFailed(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, code)
}

func (r *recorder) UploadsPruned(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned += n
}

func (r *recorder) TokensPurged(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged += n
}

type fixture struct {
	svc   *core.Service
	store *memory.Store
	clock *fakeClock
	rec   *recorder
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.Defaults()
	cfg.Security.BcryptCost = bcrypt.MinCost
	for _, m := range mutate {
		m(cfg)
	}

	store := memory.New()
	svc, err := core.NewService(store, cfg)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc.SetClock(clock.Now)

	rec := &recorder{}
	svc.SetRecorder(rec)

	return &fixture{svc: svc, store: store, clock: clock, rec: rec}
}

func (f *fixture) register(t *testing.T, name string) core.User {
	t.Helper()
	sess, err := f.svc.Register(context.Background(), name, name+"@example.com", "secret123")
	if err != nil {
		t.Fatalf("Register(%q) error = %v", name, err)
	}
	return sess.User
}

func (f *fixture) upload(t *testing.T, user core.User, body string) core.UploadResult {
	t.Helper()
	res, err := f.svc.Upload(context.Background(), user, "plant.csv", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	return res
}

func TestNewService_RejectsBadPolicy(t *testing.T) {
	cfg := config.Defaults()
	cfg.Upload.NumericPolicy = "coerce"

	if _, err := core.NewService(memory.New(), cfg); err == nil {
		t.Fatal("NewService() expected error for unknown numeric policy")
	}
	if _, err := core.NewService(nil, config.Defaults()); err == nil {
		t.Fatal("NewService() expected error for nil store")
	}
}

func TestService_UploadAndQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "alice")

	res := f.upload(t, user, csvHeader+
		"Valve-1,Valve,,3.1,40.0\n"+
		"Pump-1,Pump,120.5,4.2,65.0\n"+
		"Compressor-1,Compressor,80,9,120\n")

	if res.Upload.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", res.Upload.RecordCount)
	}
	if res.Stats.Dropped != 1 {
		t.Errorf("Stats.Dropped = %d, want 1", res.Stats.Dropped)
	}
	if res.Upload.Filename != "plant.csv" {
		t.Errorf("Filename = %q, want plant.csv", res.Upload.Filename)
	}

	items, err := f.svc.Equipment(ctx, user, nil)
	if err != nil {
		t.Fatalf("Equipment() error = %v", err)
	}
	if len(items) != 2 || items[0].Name != "Compressor-1" || items[1].Name != "Pump-1" {
		t.Errorf("Equipment() = %+v, want Compressor-1, Pump-1 ordered by name", items)
	}

	sum, err := f.svc.Summary(ctx, user, &res.Upload.ID)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.TotalCount != 2 || sum.MaxFlowrate != 120.5 || sum.MinFlowrate != 80 {
		t.Errorf("Summary() = %+v", sum)
	}

	detail, err := f.svc.UploadDetail(ctx, user, res.Upload.ID)
	if err != nil {
		t.Fatalf("UploadDetail() error = %v", err)
	}
	if len(detail.Equipment) != 2 {
		t.Errorf("UploadDetail equipment = %d, want 2", len(detail.Equipment))
	}

	if f.rec.succeeded != 1 {
		t.Errorf("recorded successes = %d, want 1", f.rec.succeeded)
	}
}

func TestService_UploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     string
		wantErr  func(error) bool
		wantCode string
	}{
		{
			name:     "not a csv",
			filename: "plant.xlsx",
			body:     csvHeader + "P,Pump,1,2,3\n",
			wantErr:  func(err error) bool { return errors.Is(err, core.ErrNotCSV) },
			wantCode: "FILE006",
		},
		{
			name:     "missing column",
			filename: "plant.csv",
			body:     "Equipment Name,Type,Flowrate,Temperature\nP,Pump,1,3\n",
			wantErr: func(err error) bool {
				var se *core.SchemaError
				return errors.As(err, &se)
			},
			wantCode: "VAL004",
		},
		{
			name:     "all rows dropped",
			filename: "plant.csv",
			body:     csvHeader + "P,,1,2,3\n",
			wantErr:  func(err error) bool { return errors.Is(err, core.ErrEmptyResult) },
			wantCode: "FILE005",
		},
		{
			name:     "header only",
			filename: "PLANT.CSV",
			body:     csvHeader,
			wantErr:  func(err error) bool { return errors.Is(err, core.ErrEmptyResult) },
			wantCode: "FILE005",
		},
		{
			name:     "bad number aborts",
			filename: "plant.csv",
			body:     csvHeader + "P,Pump,lots,2,3\n",
			wantErr: func(err error) bool {
				var re *core.RowError
				return errors.As(err, &re)
			},
			wantCode: "VAL002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			user := f.register(t, "bob")

			_, err := f.svc.Upload(context.Background(), user, tt.filename, strings.NewReader(tt.body))
			if !tt.wantErr(err) {
				t.Fatalf("Upload() error = %v", err)
			}

			history, err := f.svc.History(context.Background(), user)
			if err != nil {
				t.Fatalf("History() error = %v", err)
			}
			if len(history) != 0 {
				t.Errorf("history = %d uploads, want 0 after failed upload", len(history))
			}
			if f.store.EquipmentCount() != 0 {
				t.Errorf("equipment rows = %d, want 0", f.store.EquipmentCount())
			}
			if len(f.rec.failed) != 1 || f.rec.failed[0] != tt.wantCode {
				t.Errorf("recorded failures = %v, want [%s]", f.rec.failed, tt.wantCode)
			}
		})
	}
}

func TestService_DropPolicy(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Upload.NumericPolicy = "drop" })
	user := f.register(t, "carol")

	res := f.upload(t, user, csvHeader+"P-1,Pump,lots,2,3\nP-2,Pump,1,2,3\n")
	if res.Upload.RecordCount != 1 || res.Stats.Malformed != 1 {
		t.Errorf("RecordCount = %d, Malformed = %d, want 1 and 1", res.Upload.RecordCount, res.Stats.Malformed)
	}
}

func TestService_RetentionKeepsFiveNewest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "dave")

	var ids []uuid.UUID
	for i := 1; i <= 6; i++ {
		res := f.upload(t, user, fmt.Sprintf("%sPump-%d,Pump,%d,1,1\n", csvHeader, i, i))
		ids = append(ids, res.Upload.ID)
		if i < 6 && len(res.Pruned) != 0 {
			t.Errorf("upload %d pruned %v, want none", i, res.Pruned)
		}
		if i == 6 && (len(res.Pruned) != 1 || res.Pruned[0] != ids[0]) {
			t.Errorf("upload 6 pruned %v, want [%s]", res.Pruned, ids[0])
		}
	}

	history, err := f.svc.History(ctx, user)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("len(history) = %d, want 5", len(history))
	}
	for i, u := range history {
		want := ids[5-i]
		if u.ID != want {
			t.Errorf("history[%d] = %s, want %s (newest first)", i, u.ID, want)
		}
	}

	// The oldest batch is gone together with its rows
	if _, err := f.svc.UploadDetail(ctx, user, ids[0]); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UploadDetail(oldest) error = %v, want ErrNotFound", err)
	}
	rows, err := f.store.ListEquipment(ctx, ids[0])
	if err != nil {
		t.Fatalf("ListEquipment() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("oldest upload still has %d rows", len(rows))
	}
	if f.store.EquipmentCount() != 5 {
		t.Errorf("EquipmentCount = %d, want 5", f.store.EquipmentCount())
	}
	if f.rec.pruned != 1 {
		t.Errorf("recorded pruned = %d, want 1", f.rec.pruned)
	}
}

func TestService_RetentionIsPerUser(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Upload.KeepUploads = 2 })
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	f.upload(t, bob, csvHeader+"B,Pump,1,1,1\n")
	for i := 0; i < 3; i++ {
		f.upload(t, alice, csvHeader+"A,Pump,1,1,1\n")
	}

	aliceHistory, _ := f.svc.History(ctx, alice)
	bobHistory, _ := f.svc.History(ctx, bob)
	if len(aliceHistory) != 2 {
		t.Errorf("alice history = %d, want 2", len(aliceHistory))
	}
	if len(bobHistory) != 1 {
		t.Errorf("bob history = %d, want 1", len(bobHistory))
	}
}

func TestService_RetentionFailurePropagates(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Upload.KeepUploads = 1 })
	ctx := context.Background()
	user := f.register(t, "erin")

	f.upload(t, user, csvHeader+"A,Pump,1,1,1\n")

	boom := errors.New("disk on fire")
	f.store.FailOn("DeleteUpload", boom)

	res, err := f.svc.Upload(ctx, user, "second.csv", strings.NewReader(csvHeader+"B,Pump,1,1,1\n"))
	if !errors.Is(err, boom) {
		t.Fatalf("Upload() error = %v, want %v", err, boom)
	}
	// The new batch was committed before pruning ran
	if res.Upload.ID == uuid.Nil {
		t.Error("result should carry the committed upload")
	}

	f.store.FailOn("DeleteUpload", nil)
	latest, err := f.svc.Equipment(ctx, user, nil)
	if err != nil {
		t.Fatalf("Equipment() error = %v", err)
	}
	if len(latest) != 1 || latest[0].Name != "B" {
		t.Errorf("latest equipment = %+v, want B", latest)
	}
}

func TestService_ScopingAndEmptyState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	mallory := f.register(t, "mallory")

	// No uploads yet
	items, err := f.svc.Equipment(ctx, alice, nil)
	if err != nil || len(items) != 0 {
		t.Errorf("Equipment() = %v, %v; want empty, nil", items, err)
	}
	sum, err := f.svc.Summary(ctx, alice, nil)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.TotalCount != 0 || sum.TypeDistribution == nil {
		t.Errorf("Summary() = %+v, want zero summary", sum)
	}
	if _, err := f.svc.Report(ctx, alice, nil); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Report() error = %v, want ErrNotFound", err)
	}

	res := f.upload(t, alice, csvHeader+"P,Pump,1,2,3\n")

	// Another user cannot see alice's upload
	if _, err := f.svc.Equipment(ctx, mallory, &res.Upload.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign Equipment() error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Summary(ctx, mallory, &res.Upload.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign Summary() error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.UploadDetail(ctx, mallory, res.Upload.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign UploadDetail() error = %v, want ErrNotFound", err)
	}
	missing := uuid.New()
	if _, err := f.svc.Summary(ctx, alice, &missing); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown Summary() error = %v, want ErrNotFound", err)
	}

	report, err := f.svc.Report(ctx, alice, nil)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report.Upload.ID != res.Upload.ID || report.Summary.TotalCount != 1 {
		t.Errorf("Report() = %+v", report)
	}
}

func TestService_Auth(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Security.TokenTTL = time.Hour })
	ctx := context.Background()

	sess, err := f.svc.Register(ctx, "  frank ", "frank@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if sess.User.Username != "frank" {
		t.Errorf("Username = %q, want trimmed %q", sess.User.Username, "frank")
	}
	if len(sess.Token) != 40 {
		t.Errorf("token length = %d, want 40", len(sess.Token))
	}

	if _, err := f.svc.Register(ctx, "frank", "", "another1"); !errors.Is(err, core.ErrUsernameTaken) {
		t.Errorf("duplicate Register() error = %v, want ErrUsernameTaken", err)
	}

	var ve core.ValidationError
	if _, err := f.svc.Register(ctx, "gina", "", "short"); !errors.As(err, &ve) || ve.Field != "password" {
		t.Errorf("short password error = %v, want ValidationError on password", err)
	}
	_, err = f.svc.Register(ctx, "hank", "", strings.Repeat("p", 80))
	if !errors.As(err, &ve) || ve.Field != "password" {
		t.Errorf("long password error = %v, want ValidationError on password", err)
	}
	if status := core.HTTPStatus(err); status != 400 {
		t.Errorf("long password status = %d, want 400", status)
	}
	if _, err := f.svc.Register(ctx, "  ", "", "longenough"); !errors.As(err, &ve) || ve.Field != "username" {
		t.Errorf("blank username error = %v, want ValidationError on username", err)
	}

	user, err := f.svc.Authenticate(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != sess.User.ID {
		t.Errorf("Authenticate() user = %s, want %s", user.ID, sess.User.ID)
	}

	if _, err := f.svc.Login(ctx, "frank", "wrong-password"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("bad password Login() error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := f.svc.Login(ctx, "nobody", "hunter22"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("unknown user Login() error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := f.svc.Login(ctx, "frank", ""); !errors.As(err, &ve) {
		t.Errorf("empty password Login() error = %v, want ValidationError", err)
	}

	login, err := f.svc.Login(ctx, "frank", "hunter22")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.Token == sess.Token {
		t.Error("Login() should issue a fresh token")
	}

	if err := f.svc.Logout(ctx, login.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, login.Token); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("Authenticate(revoked) error = %v, want ErrUnauthorized", err)
	}
	if err := f.svc.Logout(ctx, login.Token); err != nil {
		t.Errorf("second Logout() error = %v, want nil", err)
	}
	if _, err := f.svc.Authenticate(ctx, ""); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("Authenticate(\"\") error = %v, want ErrUnauthorized", err)
	}

	// Expiry and purge
	f.clock.Advance(2 * time.Hour)
	if _, err := f.svc.Authenticate(ctx, sess.Token); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("Authenticate(expired) error = %v, want ErrUnauthorized", err)
	}
	purged, err := f.svc.PurgeExpiredTokens(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredTokens() error = %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
}

func TestService_TokenPurgeScheduler(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Security.TokenTTL = time.Minute })
	ctx, cancel := context.WithCancel(context.Background())

	f.register(t, "hank")
	f.clock.Advance(time.Hour)

	done := make(chan error, 1)
	go func() { done <- f.svc.StartTokenPurgeScheduler(ctx, "@every 1h") }()

	// The first purge runs synchronously on start
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.rec.mu.Lock()
		purged := f.rec.purged
		f.rec.mu.Unlock()
		if purged == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("purged = %d, want 1", purged)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("StartTokenPurgeScheduler() error = %v", err)
	}
}

func TestService_TokenPurgeSchedulerBadSpec(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.StartTokenPurgeScheduler(context.Background(), "every tuesday"); err == nil {
		t.Error("expected error for invalid cron spec")
	}
}

func TestService_ConcurrentUploadsSameUser(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Upload.KeepUploads = 3 })
	ctx := context.Background()
	user := f.register(t, "ivy")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf("%sP-%d,Pump,%d,1,1\n", csvHeader, i, i)
			if _, err := f.svc.Upload(ctx, user, "x.csv", strings.NewReader(body)); err != nil {
				t.Errorf("Upload() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	history, err := f.svc.History(ctx, user)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Errorf("len(history) = %d, want 3", len(history))
	}
	if f.store.EquipmentCount() != 3 {
		t.Errorf("EquipmentCount = %d, want 3", f.store.EquipmentCount())
	}
	if status := f.svc.UploadGateStatus(); status.Active != 0 {
		t.Errorf("gate Active = %d, want 0", status.Active)
	}
}

// slowReader delays every read so an upload outlives a short timeout.
type slowReader struct {
	r     *strings.Reader
	delay time.Duration
}

func (s slowReader) Read(p []byte) (int, error) {
	time.Sleep(s.delay)
	return s.r.Read(p)
}

func TestService_UploadTimeout(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Upload.Timeout = time.Millisecond })
	user := f.register(t, "alice")

	body := slowReader{r: strings.NewReader(csvHeader + "Pump-1,Pump,1,2,3\n"), delay: 20 * time.Millisecond}
	_, err := f.svc.Upload(context.Background(), user, "plant.csv", body)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Upload() error = %v, want deadline exceeded", err)
	}
	if code := core.MapError(err).Code; code != "UPL005" {
		t.Errorf("code = %q, want UPL005", code)
	}
	if n := f.store.EquipmentCount(); n != 0 {
		t.Errorf("EquipmentCount() = %d, want 0", n)
	}
}

func TestService_UploadDurationUsesClock(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "alice")

	res := f.upload(t, user, csvHeader+"Pump-1,Pump,1,2,3\n")
	if res.Duration <= 0 || res.Duration > time.Minute {
		t.Errorf("Duration = %v, want a few fake-clock seconds", res.Duration)
	}
}

// Package client is a typed HTTP client for the equipment API.
//
// There is no package-level state. A Client knows where the server is; a
// Session is a Client plus the token of one authenticated user, and every
// data operation hangs off a Session value the caller passes around.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/chemequip/internal/core"
)

// DefaultBaseURL is where a locally started server listens.
const DefaultBaseURL = "http://localhost:8080"

// DefaultTimeout bounds requests other than uploads and reports.
const DefaultTimeout = 30 * time.Second

// ErrNotAuthenticated is returned by Session methods on a zero Session.
var ErrNotAuthenticated = errors.New("not logged in")

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
	Action  string
	Detail  string // the "error" field, which may be more specific than Message
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (code %s, HTTP %d)", msg, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// User is the public profile returned at login.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Upload is one entry of the upload history.
type Upload struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	UploadedAt     time.Time `json:"uploaded_at"`
	RecordCount    int       `json:"record_count"`
	EquipmentCount int       `json:"equipment_count"`
}

// UploadDetail is an upload with its equipment rows.
type UploadDetail struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	UploadedAt  time.Time        `json:"uploaded_at"`
	RecordCount int              `json:"record_count"`
	Equipment   []core.Equipment `json:"equipment"`
}

// UploadResult is the server's answer to a successful upload.
type UploadResult struct {
	Message        string           `json:"message"`
	Upload         Upload           `json:"upload"`
	EquipmentCount int              `json:"equipment_count"`
	Stats          core.IngestStats `json:"stats"`
	Pruned         []string         `json:"pruned"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout for short calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client talks to one server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// New creates a client for baseURL, e.g. "http://localhost:8080".
// A trailing "/api" is accepted and ignored.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	baseURL = strings.TrimSuffix(baseURL, "/api")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address without the /api prefix.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register creates an account and returns a session for it.
func (c *Client) Register(ctx context.Context, username, email, password string) (*Session, error) {
	var resp sessionBody
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/register/", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &Session{client: c, Token: resp.Token, User: resp.User}, nil
}

// Login authenticates and returns a session.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var resp sessionBody
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login/", "", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &Session{client: c, Token: resp.Token, User: resp.User}, nil
}

// Resume wraps a previously issued token without contacting the server.
func (c *Client) Resume(token string, user User) *Session {
	return &Session{client: c, Token: token, User: user}
}

type sessionBody struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Session is an authenticated view of the API. Its lifetime is that of the
// token: after Logout every call fails with ErrNotAuthenticated.
type Session struct {
	client *Client
	Token  string
	User   User
}

func (s *Session) ready() error {
	if s == nil || s.client == nil || s.Token == "" {
		return ErrNotAuthenticated
	}
	return nil
}

// Logout revokes the token on the server and clears it locally.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.client.doJSON(ctx, http.MethodPost, "/api/auth/logout/", s.Token, nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.Token = ""
	return nil
}

// Upload sends r as a CSV file named filename.
func (s *Session) Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	var result UploadResult
	if err := s.ready(); err != nil {
		return result, err
	}

	// Stream the multipart body so large files are not buffered twice.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		fw, err := mw.CreateFormFile("file", filepath.Base(filename))
		if err == nil {
			_, err = io.Copy(fw, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.url("/api/upload/", nil), pr)
	if err != nil {
		pr.Close()
		return result, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.authorize(req)

	if err := s.client.send(req, &result); err != nil {
		return result, fmt.Errorf("upload %s: %w", filename, err)
	}
	return result, nil
}

// UploadFile opens path and uploads it.
func (s *Session) UploadFile(ctx context.Context, path string) (UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResult{}, err
	}
	defer f.Close()
	return s.Upload(ctx, filepath.Base(path), f)
}

// Equipment lists the rows of uploadID, or of the latest upload when
// uploadID is empty.
func (s *Session) Equipment(ctx context.Context, uploadID string) ([]core.Equipment, error) {
	var items []core.Equipment
	if err := s.get(ctx, "/api/data/", uploadQuery(uploadID), &items); err != nil {
		return nil, fmt.Errorf("equipment: %w", err)
	}
	return items, nil
}

// Summary returns statistics for uploadID, or the latest upload when empty.
func (s *Session) Summary(ctx context.Context, uploadID string) (core.SummaryStatistics, error) {
	var summary core.SummaryStatistics
	if err := s.get(ctx, "/api/summary/", uploadQuery(uploadID), &summary); err != nil {
		return summary, fmt.Errorf("summary: %w", err)
	}
	return summary, nil
}

// History lists the retained uploads, newest first.
func (s *Session) History(ctx context.Context) ([]Upload, error) {
	var uploads []Upload
	if err := s.get(ctx, "/api/history/", nil, &uploads); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return uploads, nil
}

// UploadDetail returns one upload with its equipment.
func (s *Session) UploadDetail(ctx context.Context, uploadID string) (UploadDetail, error) {
	var detail UploadDetail
	if err := s.get(ctx, "/api/history/"+url.PathEscape(uploadID)+"/", nil, &detail); err != nil {
		return detail, fmt.Errorf("upload detail: %w", err)
	}
	return detail, nil
}

// Report downloads the PDF report for uploadID (latest when empty) into w
// and returns the number of bytes written.
func (s *Session) Report(ctx context.Context, uploadID string, w io.Writer) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.url("/api/report/", uploadQuery(uploadID)), nil)
	if err != nil {
		return 0, err
	}
	s.authorize(req)

	resp, err := s.client.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("report: %w", decodeError(resp))
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("report: %w", err)
	}
	return n, nil
}

func (s *Session) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := s.ready(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.client.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.url(path, q), nil)
	if err != nil {
		return err
	}
	s.authorize(req)
	return s.client.send(req, out)
}

func (s *Session) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Token "+s.Token)
}

func uploadQuery(uploadID string) url.Values {
	if uploadID == "" {
		return nil
	}
	return url.Values{"upload_id": {uploadID}}
}

func (c *Client) url(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// doJSON sends body (if non-nil) as JSON and decodes the response into out.
func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, nil), rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	return c.send(req, out)
}

// send performs req and decodes a JSON body into out (skipped when nil).
func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError builds an APIError from a failed response. Bodies that are
// not the server's JSON error shape still yield the status.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Action  string `json:"action"`
		Code    string `json:"code"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err == nil {
		apiErr.Detail = body.Error
		apiErr.Message = body.Message
		apiErr.Action = body.Action
		apiErr.Code = body.Code
	}
	return apiErr
}

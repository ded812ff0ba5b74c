package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:       "schema error",
			err:        &SchemaError{Missing: []string{"Pressure"}},
			wantCode:   "VAL004",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "row error",
			err:        &RowError{Line: 3, Column: "Flowrate", Value: "x"},
			wantCode:   "VAL002",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "parse error",
			err:        &ParseError{Line: 2, Err: errors.New("bare quote")},
			wantCode:   "FILE002",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "encoding error inside parse error",
			err:        &ParseError{Err: &EncodingError{Offset: 7}},
			wantCode:   "FILE003",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "validation error",
			err:        ValidationError{Field: "password", Message: "too short"},
			wantCode:   "VAL003",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty result",
			err:        ErrEmptyResult,
			wantCode:   "FILE005",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not csv",
			err:        ErrNotCSV,
			wantCode:   "FILE006",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no file",
			err:        ErrNoFile,
			wantCode:   "FILE004",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "file too large",
			err:        fmt.Errorf("read upload: %w", ErrFileTooLarge),
			wantCode:   "FILE001",
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "wrapped not found",
			err:        fmt.Errorf("upload not found: %w", ErrNotFound),
			wantCode:   "UPL003",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "busy",
			err:        ErrUploadInProgress,
			wantCode:   "UPL002",
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "deadline",
			err:        fmt.Errorf("create upload: %w", context.DeadlineExceeded),
			wantCode:   "UPL005",
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "invalid credentials",
			err:        ErrInvalidCredentials,
			wantCode:   "AUTH001",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unauthorized",
			err:        ErrUnauthorized,
			wantCode:   "AUTH002",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "username taken",
			err:        fmt.Errorf("create user: %w", ErrUsernameTaken),
			wantCode:   "AUTH003",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "duplicate key text",
			err:        errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode:   "DB002",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "connection refused",
			err:        errors.New("dial tcp: connection refused"),
			wantCode:   "DB004",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "case insensitive matching",
			err:        errors.New("DEADLOCK detected"),
			wantCode:   "DB007",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unknown error returns default",
			err:        errors.New("some random internal error"),
			wantCode:   "ERR000",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Status != tt.wantStatus {
				t.Errorf("MapError() status = %d, want %d", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	if got := HTTPStatus(nil); got != http.StatusOK {
		t.Errorf("HTTPStatus(nil) = %d, want %d", got, http.StatusOK)
	}
	if got := HTTPStatus(ErrNotFound); got != http.StatusNotFound {
		t.Errorf("HTTPStatus(ErrNotFound) = %d, want %d", got, http.StatusNotFound)
	}
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&SchemaError{Missing: []string{"Type"}}, true},
		{ErrEmptyResult, true},
		{ErrNotFound, true},
		{errors.New("connection refused"), false},
		{errors.New("boom"), false},
	}

	for _, tt := range tests {
		if got := IsClientError(tt.err); got != tt.want {
			t.Errorf("IsClientError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrEmptyResult, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

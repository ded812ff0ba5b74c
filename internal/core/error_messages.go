package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Clients show the code next to the message so a user can quote it.
//
// # Database Errors (DB001-DB099)
//
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique", "duplicate key"
//
//	DB004 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//
//	DB005 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//
//	DB007 - Deadlock: Database was busy with conflicting operations
//	        Patterns: "deadlock"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL002 - Invalid number: a numeric cell could not be parsed (*RowError)
//	VAL003 - Required field: a request field is missing (ValidationError)
//	VAL004 - Missing column: required CSV columns are absent (*SchemaError)
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: request body over the upload limit
//	FILE002 - Invalid CSV: malformed quoting or ragged rows (*ParseError)
//	FILE003 - Encoding error: file is not UTF-8 (*EncodingError)
//	FILE004 - No file: multipart field "file" missing
//	FILE005 - Empty file: no rows survived ingestion (ErrEmptyResult)
//	FILE006 - Not a CSV: file name does not end in .csv (ErrNotCSV)
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - Busy: the user's previous upload is still running (ErrUploadInProgress)
//	UPL003 - Not found: upload or data does not exist for this user (ErrNotFound)
//	UPL004 - Request cancelled (context.Canceled)
//	UPL005 - Request timeout (context.DeadlineExceeded)
//
// # Auth Errors (AUTH001-AUTH099)
//
//	AUTH001 - Invalid credentials (ErrInvalidCredentials)
//	AUTH002 - Unauthorized: missing, unknown or expired token (ErrUnauthorized)
//	AUTH003 - Username taken (ErrUsernameTaken)
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original error.
//
// # Matching
//
// Typed errors and sentinels are matched first with errors.As / errors.Is,
// so a wrapped error keeps its code no matter what its message says.
// Remaining errors fall through to case-insensitive substring patterns;
// the first matching pattern wins.

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
	Status  int    // HTTP status for API responses
}

var (
	msgInvalidNumber = UserMessage{
		Message: "Invalid number format detected",
		Action:  "Use plain decimal numbers in Flowrate, Pressure and Temperature",
		Code:    "VAL002",
		Status:  http.StatusBadRequest,
	}
	msgRequiredField = UserMessage{
		Message: "Required field is empty",
		Action:  "Fill in all required fields",
		Code:    "VAL003",
		Status:  http.StatusBadRequest,
	}
	msgMissingColumn = UserMessage{
		Message: "Required column is missing from CSV",
		Action:  "Include Equipment Name, Type, Flowrate, Pressure and Temperature columns",
		Code:    "VAL004",
		Status:  http.StatusBadRequest,
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
		Status:  http.StatusRequestEntityTooLarge,
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure file is comma-separated with consistent columns",
		Code:    "FILE002",
		Status:  http.StatusBadRequest,
	}
	msgEncoding = UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save file as UTF-8 encoding",
		Code:    "FILE003",
		Status:  http.StatusBadRequest,
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to upload",
		Code:    "FILE004",
		Status:  http.StatusBadRequest,
	}
	msgEmptyFile = UserMessage{
		Message: "CSV file contains no valid data",
		Action:  "Please upload a CSV file with complete data rows",
		Code:    "FILE005",
		Status:  http.StatusBadRequest,
	}
	msgNotCSV = UserMessage{
		Message: "File must be a CSV",
		Action:  "Upload a file with a .csv extension",
		Code:    "FILE006",
		Status:  http.StatusBadRequest,
	}
	msgBusy = UserMessage{
		Message: "A previous upload is still being processed",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
		Status:  http.StatusTooManyRequests,
	}
	msgNotFound = UserMessage{
		Message: "No data found",
		Action:  "Upload a CSV file or pick an upload from your history",
		Code:    "UPL003",
		Status:  http.StatusNotFound,
	}
	msgCanceled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
		Status:  499,
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try uploading a smaller file or check your connection",
		Code:    "UPL005",
		Status:  http.StatusGatewayTimeout,
	}
	msgInvalidCredentials = UserMessage{
		Message: "Invalid credentials",
		Action:  "Check your username and password",
		Code:    "AUTH001",
		Status:  http.StatusUnauthorized,
	}
	msgUnauthorized = UserMessage{
		Message: "Authentication required",
		Action:  "Log in again to obtain a new token",
		Code:    "AUTH002",
		Status:  http.StatusUnauthorized,
	}
	msgUsernameTaken = UserMessage{
		Message: "Username already exists",
		Action:  "Choose a different username",
		Code:    "AUTH003",
		Status:  http.StatusBadRequest,
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
		Status:  http.StatusTooManyRequests,
	}
)

// typedError matches errors by identity or type rather than by text.
type typedError struct {
	match func(error) bool
	msg   UserMessage
}

func isErr(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func asErr[T error]() func(error) bool {
	return func(err error) bool {
		var target T
		return errors.As(err, &target)
	}
}

// Order matters: an EncodingError arrives wrapped in a ParseError, so it
// must be checked first.
var typedErrors = []typedError{
	{asErr[*EncodingError](), msgEncoding},
	{asErr[*SchemaError](), msgMissingColumn},
	{asErr[*RowError](), msgInvalidNumber},
	{asErr[*ParseError](), msgInvalidCSV},
	{asErr[ValidationError](), msgRequiredField},
	{isErr(ErrEmptyResult), msgEmptyFile},
	{isErr(ErrNotCSV), msgNotCSV},
	{isErr(ErrNoFile), msgNoFile},
	{isErr(ErrFileTooLarge), msgFileTooLarge},
	{isErr(ErrUploadInProgress), msgBusy},
	{isErr(ErrInvalidCredentials), msgInvalidCredentials},
	{isErr(ErrUnauthorized), msgUnauthorized},
	{isErr(ErrUsernameTaken), msgUsernameTaken},
	{isErr(ErrNotFound), msgNotFound},
	{isErr(context.DeadlineExceeded), msgTimeout},
	{isErr(context.Canceled), msgCanceled},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages
// for errors that carry no type, mostly driver errors.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{
		Message: "A record with this value already exists",
		Action:  "Please try again",
		Code:    "DB002",
		Status:  http.StatusConflict,
	}},
	{"unique constraint", UserMessage{
		Message: "This value must be unique but already exists",
		Action:  "Please try again",
		Code:    "DB002",
		Status:  http.StatusConflict,
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
		Status:  http.StatusServiceUnavailable,
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
		Status:  http.StatusServiceUnavailable,
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
		Status:  http.StatusServiceUnavailable,
	}},
	{"request body too large", msgFileTooLarge},
	{"rate limit", msgRateLimited},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts a technical error to a user-friendly message.
// Typed errors are checked first, then text patterns; if nothing matches
// the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, te := range typedErrors {
		if te.match(err) {
			return te.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return MapError(err).Status
}

// IsUserFacing reports whether err maps to a specific message rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

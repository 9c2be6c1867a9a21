package errors

import (
	"errors"
	"fmt"
)

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// ErrNotFound reports a missing row for a point lookup.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ErrDuplicate reports a uniqueness violation on a stored entity.
type ErrDuplicate struct {
	Kind string
	Key  string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.Key)
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

// Crypto errors

type ErrEncryption struct {
	Err error
}

func (e *ErrEncryption) Error() string {
	return fmt.Sprintf("encryption failed: %v", e.Err)
}

func (e *ErrEncryption) Unwrap() error {
	return e.Err
}

type ErrDecryption struct {
	Err error
}

func (e *ErrDecryption) Error() string {
	return fmt.Sprintf("decryption failed: %v", e.Err)
}

func (e *ErrDecryption) Unwrap() error {
	return e.Err
}

// OAuth errors

// ErrTokenEndpoint reports a non-2xx response from eBay's OAuth token
// endpoint. Description carries eBay's error_description verbatim so
// operators can diagnose scope and consent problems.
type ErrTokenEndpoint struct {
	Grant       string
	StatusCode  int
	Code        string
	Description string
}

func (e *ErrTokenEndpoint) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("ebay token endpoint rejected %s grant (status %d): %s", e.Grant, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("ebay token endpoint rejected %s grant (status %d): %s", e.Grant, e.StatusCode, e.Code)
}

// AsTokenEndpoint extracts an ErrTokenEndpoint from an error chain.
func AsTokenEndpoint(err error) (*ErrTokenEndpoint, bool) {
	var target *ErrTokenEndpoint
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// ErrReauthRequired is the terminal failure of the token lifecycle: the
// refresh token was rejected or consent was revoked, and only a new
// authorization flow can recover. Never retried in-process.
type ErrReauthRequired struct {
	AccountID string
	Err       error
}

func (e *ErrReauthRequired) Error() string {
	return fmt.Sprintf("account %s requires re-authentication: %v", e.AccountID, e.Err)
}

func (e *ErrReauthRequired) Unwrap() error {
	return e.Err
}

// IsReauthRequired reports whether err is (or wraps) an
// ErrReauthRequired.
func IsReauthRequired(err error) bool {
	var target *ErrReauthRequired
	return errors.As(err, &target)
}

// Automated-login errors

// LoginStage identifies where the headless authorization flow failed.
type LoginStage string

const (
	LoginStageNavigate LoginStage = "navigate"
	LoginStageUsername LoginStage = "username"
	LoginStagePassword LoginStage = "password"
	LoginStageConsent  LoginStage = "consent"
	LoginStageRedirect LoginStage = "redirect"
)

type ErrAutomatedLogin struct {
	Stage   LoginStage
	Timeout bool
	Err     error
}

func (e *ErrAutomatedLogin) Error() string {
	if e.Timeout {
		return fmt.Sprintf("automated login timed out at %s step: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("automated login failed at %s step: %v", e.Stage, e.Err)
}

func (e *ErrAutomatedLogin) Unwrap() error {
	return e.Err
}

// Upstream eBay API errors

// APIKind classifies an upstream eBay response once at the HTTP
// boundary so downstream logic branches on the enum, never on message
// substrings.
type APIKind string

const (
	KindNotFound     APIKind = "not_found"
	KindUnauthorized APIKind = "unauthorized"
	KindForbidden    APIKind = "forbidden"
	KindConflict     APIKind = "conflict"
	KindRateLimited  APIKind = "rate_limited"
	KindUnknown      APIKind = "unknown"
)

// ClassifyStatus maps an HTTP status code to an APIKind.
func ClassifyStatus(status int) APIKind {
	switch status {
	case 401:
		return KindUnauthorized
	case 403:
		return KindForbidden
	case 404:
		return KindNotFound
	case 409:
		return KindConflict
	case 429:
		return KindRateLimited
	default:
		return KindUnknown
	}
}

// APIError is a non-2xx response from eBay's Sell APIs, carrying the
// status and raw body for the caller's response shaping.
type APIError struct {
	StatusCode int
	Kind       APIKind
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ebay api error (status %d, kind %s): %s", e.StatusCode, e.Kind, e.Body)
}

// AsAPIError extracts an APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var target *APIError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

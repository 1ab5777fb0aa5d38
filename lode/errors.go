package lode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Storage failure kinds. Match with errors.Is on a *StorageError.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	ErrThrottled        = errors.New("rate limited")
	// ErrAuth is missing or expired credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied is valid credentials without permission on the bucket or key.
	ErrAccessDenied = errors.New("access denied")
	ErrNetwork      = errors.New("network error")
	ErrUnclassified = errors.New("storage error")
)

// StorageError is an archive failure with its kind, the operation and the
// dataset or path involved. The cause stays in the chain.
type StorageError struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches the failure kind as well as the wrapped cause.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewStorageError creates a classified storage error.
func NewStorageError(kind error, op, path string, err error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Path: path, Err: err}
}

// WrapWriteError classifies a failed archive write; nil stays nil.
func WrapWriteError(err error, path string) error { return wrap("write", path, err) }

// WrapReadError classifies a failed archive read; nil stays nil.
func WrapReadError(err error, path string) error { return wrap("read", path, err) }

// WrapInitError classifies a failure to open a dataset; nil stays nil.
func WrapInitError(err error, dataset string) error { return wrap("init", dataset, err) }

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewStorageError(classifyError(err), op, path, err)
}

// classifyRule maps message fragments to a kind. Rules are tried in order.
type classifyRule struct {
	kind      error
	fragments []string
}

var classifyRules = []classifyRule{
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "ENOENT", "404", "NoSuchKey", "NoSuchBucket"}},
	{ErrDiskFull, []string{"no space left", "disk full", "ENOSPC", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"SlowDown", "rate exceeded", "throttl", "429", "TooManyRequests"}},
	{ErrAuth, []string{"NoCredentialProviders", "credentials", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "ExpiredToken", "401", "Unauthorized"}},
	{ErrAccessDenied, []string{"AccessDenied", "Forbidden", "403"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable",
		"DNS", "dial tcp", "i/o timeout"}},
}

// classifyError picks the kind for err: typed causes first, then the
// message rules, falling back to ErrUnclassified.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var timeout interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &timeout) && timeout.Timeout():
		return ErrTimeout
	case errors.Is(err, os.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, syscall.ENOSPC):
		return ErrDiskFull
	}

	msg := strings.ToLower(err.Error())
	if errors.Is(err, os.ErrPermission) || containsAny(msg, "permission denied", "EACCES", "access denied") {
		// S3 reports denials with the same words as the local filesystem.
		if containsAny(msg, "AccessDenied", "Forbidden", "403") {
			return ErrAccessDenied
		}
		return ErrPermissionDenied
	}
	for _, rule := range classifyRules {
		if containsAny(msg, rule.fragments...) {
			return rule.kind
		}
	}
	return ErrUnclassified
}

// containsAny reports whether lower contains any fragment, ignoring case.
func containsAny(lower string, fragments ...string) bool {
	for _, f := range fragments {
		if strings.Contains(lower, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

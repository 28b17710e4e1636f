// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors for common conditions.
var (
	ErrNotFound        = errors.New("buffer not found")
	ErrAlreadyExists   = errors.New("buffer already exists")
	ErrBufferClosed    = errors.New("buffer is closed")
	ErrBufferFaulted   = errors.New("buffer is in error state")
	ErrManagerClosed   = errors.New("buffer manager is closed")
	ErrInvalidPosition = errors.New("invalid position")
	ErrPublisherClosed = errors.New("event publisher is closed")
	ErrConnectionLost  = errors.New("connection lost")
)

// Category sentinels matched by the typed errors below through errors.Is.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrMemoryExhausted = errors.New("memory exhausted")
	ErrChannelMismatch = errors.New("channel mismatch")
	ErrBufferIO        = errors.New("buffer i/o error")
)

// ConfigurationError reports an invalid buffer or manager parameter.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: field=%s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// MemoryExhaustedError reports that a per-buffer or global budget would be exceeded.
type MemoryExhaustedError struct {
	BufferID       string
	Scope          string // "buffer" or "global"
	RequestedBytes int64
	LimitBytes     int64
}

func (e *MemoryExhaustedError) Error() string {
	return fmt.Sprintf("memory exhausted: buffer_id=%s scope=%s requested=%d limit=%d",
		e.BufferID, e.Scope, e.RequestedBytes, e.LimitBytes)
}

func (e *MemoryExhaustedError) Is(target error) bool {
	return target == ErrMemoryExhausted
}

// ChannelMismatchError reports frames whose channel layout disagrees with the buffer.
type ChannelMismatchError struct {
	BufferID string
	Expected int
	Got      int
}

func (e *ChannelMismatchError) Error() string {
	return fmt.Sprintf("channel mismatch: buffer_id=%s expected=%d got=%d",
		e.BufferID, e.Expected, e.Got)
}

func (e *ChannelMismatchError) Is(target error) bool {
	return target == ErrChannelMismatch
}

// IOError represents a disk or streaming buffer I/O failure.
type IOError struct {
	BufferID  string
	Operation string
	Path      string
	Err       error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("buffer i/o error: buffer_id=%s operation=%s path=%s: %v",
		e.BufferID, e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrBufferIO
}

// StorageError represents a snapshot storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking specific error types and sentinel errors.
// Configuration and shape errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// IsRetryable reports whether recreating the buffer may succeed.
// Permission failures will not go away on their own.
func (e *IOError) IsRetryable() bool {
	return !errors.Is(e.Err, fs.ErrPermission)
}

// IsRetryable reports whether the request may succeed later. Only the global
// budget frees up as other buffers are removed.
func (e *MemoryExhaustedError) IsRetryable() bool {
	return e.Scope == ScopeGlobal
}

// Budget scopes for MemoryExhaustedError.
const (
	ScopeBuffer = "buffer"
	ScopeGlobal = "global"
)

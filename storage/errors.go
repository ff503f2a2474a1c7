package storage

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of storage errors
type ErrorCode int

const (
	// Generic errors
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInternal

	// Replacer errors
	ErrCodeReplacerFull
	ErrCodeFrameNotFound
	ErrCodeFrameNotEvictable

	// Page errors
	ErrCodePageNotFound
	ErrCodePageCorrupted

	// Buffer pool errors
	ErrCodeNoFreePages
	ErrCodePagePinned
	ErrCodeInvalidPin

	// Disk errors
	ErrCodeDiskReadFailed
	ErrCodeDiskWriteFailed
)

var errorCodeNames = map[ErrorCode]string{
	ErrCodeUnknown:           "unknown",
	ErrCodeInternal:          "internal",
	ErrCodeReplacerFull:      "replacer_full",
	ErrCodeFrameNotFound:     "frame_not_found",
	ErrCodeFrameNotEvictable: "frame_not_evictable",
	ErrCodePageNotFound:      "page_not_found",
	ErrCodePageCorrupted:     "page_corrupted",
	ErrCodeNoFreePages:       "no_free_pages",
	ErrCodePagePinned:        "page_pinned",
	ErrCodeInvalidPin:        "invalid_pin",
	ErrCodeDiskReadFailed:    "disk_read_failed",
	ErrCodeDiskWriteFailed:   "disk_write_failed",
}

// String returns a short name for the code, used in log fields
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// StorageError represents a storage engine error with context
type StorageError struct {
	Code    ErrorCode
	Message string
	Op      string // Operation that failed
	Err     error  // Underlying error (if any)
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports a match when target is a *StorageError with the same code
func (e *StorageError) Is(target error) bool {
	if t, ok := target.(*StorageError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewStorageError creates a new storage error
func NewStorageError(code ErrorCode, op, message string, err error) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// Sentinels for errors.Is matching by code.
var (
	ErrReplacerFull      = &StorageError{Code: ErrCodeReplacerFull, Message: "replacer tracking capacity exceeded"}
	ErrFrameNotFound     = &StorageError{Code: ErrCodeFrameNotFound, Message: "frame not found"}
	ErrFrameNotEvictable = &StorageError{Code: ErrCodeFrameNotEvictable, Message: "frame is not evictable"}
)

// Helper functions for common errors

func errReplacerFull(op string, frameID FrameID, capacity uint32) *StorageError {
	return NewStorageError(
		ErrCodeReplacerFull,
		op,
		fmt.Sprintf("cannot track frame %d: replacer already tracks %d frames", frameID, capacity),
		nil,
	)
}

func errFrameNotFound(op string, frameID FrameID) *StorageError {
	return NewStorageError(
		ErrCodeFrameNotFound,
		op,
		fmt.Sprintf("frame %d not found", frameID),
		nil,
	)
}

func errFrameNotEvictable(op string, frameID FrameID) *StorageError {
	return NewStorageError(
		ErrCodeFrameNotEvictable,
		op,
		fmt.Sprintf("frame %d is not evictable", frameID),
		nil,
	)
}

func ErrPageNotFound(op string, pageID uint32) *StorageError {
	return NewStorageError(
		ErrCodePageNotFound,
		op,
		fmt.Sprintf("page %d not found", pageID),
		nil,
	)
}

func ErrNoFreePages(op string) *StorageError {
	return NewStorageError(
		ErrCodeNoFreePages,
		op,
		"no free pages available in buffer pool",
		nil,
	)
}

func ErrPagePinned(op string, pageID uint32, pinCount int32) *StorageError {
	return NewStorageError(
		ErrCodePagePinned,
		op,
		fmt.Sprintf("page %d is pinned (pin count: %d)", pageID, pinCount),
		nil,
	)
}

func ErrInvalidPin(op string, pageID uint32) *StorageError {
	return NewStorageError(
		ErrCodeInvalidPin,
		op,
		fmt.Sprintf("page %d is not pinned", pageID),
		nil,
	)
}

func ErrDiskRead(op string, pageID uint32, err error) *StorageError {
	return NewStorageError(
		ErrCodeDiskReadFailed,
		op,
		fmt.Sprintf("failed to read page %d", pageID),
		err,
	)
}

func ErrDiskWrite(op string, pageID uint32, err error) *StorageError {
	return NewStorageError(
		ErrCodeDiskWriteFailed,
		op,
		fmt.Sprintf("failed to write page %d", pageID),
		err,
	)
}

func ErrPageCorrupted(op string, pageID uint32, err error) *StorageError {
	return NewStorageError(
		ErrCodePageCorrupted,
		op,
		fmt.Sprintf("page %d is corrupted", pageID),
		err,
	)
}

// IsErrorCode checks if an error chain carries a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// GetErrorCode returns the error code from an error chain, or ErrCodeUnknown
func GetErrorCode(err error) ErrorCode {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeUnknown
}

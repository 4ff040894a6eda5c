package pdfmcp

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions across the server.
var (
	ErrInvalidParam     = errors.New("pdfmcp: invalid parameter")
	ErrUnsupported      = errors.New("pdfmcp: unsupported operation")
	ErrEncrypted        = errors.New("pdfmcp: document is encrypted")
	ErrCorrupted        = errors.New("pdfmcp: document is corrupted")
	ErrNotPDF           = errors.New("pdfmcp: data is not a PDF document")
	ErrPathDenied       = errors.New("pdfmcp: path outside allowed resource directories")
	ErrPrivateURL       = errors.New("pdfmcp: URL resolves to a private address")
	ErrDownloadTooLarge = errors.New("pdfmcp: download exceeds configured size limit")
	ErrCacheMiss        = errors.New("pdfmcp: cache key not found")
)

// OpError represents an error that occurred during a specific server operation.
// It wraps an underlying error and includes the operation name for context.
type OpError struct {
	Op  string // operation name, e.g. "extract_text", "split_pdf"
	Err error  // underlying error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pdfmcp.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("pdfmcp.%s: unknown error", e.Op)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError creates a new OpError wrapping the given error with operation context.
func NewOpError(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}

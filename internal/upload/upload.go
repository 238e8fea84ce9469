package upload

import (
	"context"
	"fmt"
	"io"

	"fieldreport/internal/model"
)

// File is a picked media file ready for upload.
type File interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// Uploader turns a local media file into a durable remote URL. It performs a
// single attempt; retries are the caller's decision.
type Uploader interface {
	Upload(ctx context.Context, file File, kind model.MediaKind) (string, error)
}

// Error reports an upload failure: a non-200 response carries the status
// code, a malformed response body carries the parse cause.
type Error struct {
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upload failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

package capture

import (
	"context"
	"io"
	"os"
)

// LocalFile is an os-backed MediaFile for files already on disk.
type LocalFile struct {
	Path string
}

func (f LocalFile) Name() string { return f.Path }

func (f LocalFile) Open() (io.ReadCloser, error) { return os.Open(f.Path) }

// Size stats the file in a goroutine so a hung filesystem respects the probe
// deadline instead of blocking the submission.
func (f LocalFile) Size(ctx context.Context) (int64, error) {
	type result struct {
		size int64
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		info, err := os.Stat(f.Path)
		if err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{size: info.Size()}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-ch:
		return r.size, r.err
	}
}

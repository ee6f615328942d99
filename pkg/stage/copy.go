package stage

import (
	"io"
	"os"

	"github.com/drc-tools/drcflash/pkg/errors"
)

// CopyBufferSize is the chunk size used when streaming an image into staging
const CopyBufferSize = 4096

// CopyFile copies src to dst in CopyBufferSize chunks. A short write or a
// read error fails the copy and removes the partial destination.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open source")
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to create destination")
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close destination")
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	// hide ReadFrom/WriteTo so the copy goes through the fixed buffer
	buf := make([]byte, CopyBufferSize)
	if _, err := io.CopyBuffer(struct{ io.Writer }{out}, struct{ io.Reader }{in}, buf); err != nil {
		return errors.Wrap(err, "failed to copy image")
	}
	if err := out.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync destination")
	}
	return nil
}

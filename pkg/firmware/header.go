// Package firmware parses and validates DRC firmware images before they are staged.
package firmware

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/drc-tools/drcflash/pkg/errors"
)

// HeaderSize is the size of the firmware image header in bytes
const HeaderSize = 16

// ErrShortHeader means the image is too small to carry a header
var ErrShortHeader = errors.New("firmware: short header")

// Header is the leading block of a firmware image. All fields are little-endian.
type Header struct {
	Version            uint32
	BlockSize          uint32
	SequencePerSession uint32
	ImageSize          uint32
}

// VersionString formats the version the way the DRC reports it
func (h Header) VersionString() string {
	return fmt.Sprintf("0x%08x", h.Version)
}

// ParseHeader decodes a header from the first HeaderSize bytes of b
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.Wrapf(ErrShortHeader, "need %d bytes, got %d", HeaderSize, len(b))
	}
	return Header{
		Version:            binary.LittleEndian.Uint32(b[0:4]),
		BlockSize:          binary.LittleEndian.Uint32(b[4:8]),
		SequencePerSession: binary.LittleEndian.Uint32(b[8:12]),
		ImageSize:          binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}

// ReadHeader reads and decodes a header from r
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, errors.Classify(ErrShortHeader, err)
	}
	return ParseHeader(buf)
}

// Bytes encodes the header
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Version)
	binary.LittleEndian.PutUint32(b[4:8], h.BlockSize)
	binary.LittleEndian.PutUint32(b[8:12], h.SequencePerSession)
	binary.LittleEndian.PutUint32(b[12:16], h.ImageSize)
	return b
}

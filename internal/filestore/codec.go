package filestore

import (
	"fmt"
	"strings"
)

// Codec is an archive format.
type Codec uint8

const (
	CodecZip Codec = iota + 1
	CodecTarGzip
	CodecSevenZip
)

// Codecs lists every supported codec in presentation order.
var Codecs = []Codec{CodecZip, CodecSevenZip, CodecTarGzip}

// String returns the codec name clients use to request it.
func (c Codec) String() string {
	switch c {
	case CodecZip:
		return "zip"
	case CodecTarGzip:
		return "tar"
	case CodecSevenZip:
		return "7z"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// MediaType returns the content type of archives in this codec.
func (c Codec) MediaType() string {
	switch c {
	case CodecZip:
		return "application/x-zip-compressed"
	case CodecTarGzip:
		return "application/x-gtar"
	case CodecSevenZip:
		return "application/x-7z-compressed"
	default:
		return "application/octet-stream"
	}
}

// Filename returns the attachment name for archives in this codec.
func (c Codec) Filename() string {
	return "archive." + c.String()
}

// ParseCodec converts a client codec name to a Codec.
// Returns ErrUnsupportedCodec for anything not in Codecs.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "zip":
		return CodecZip, nil
	case "tar":
		return CodecTarGzip, nil
	case "7z":
		return CodecSevenZip, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCodec, name)
	}
}

package filestore

import "bytes"

// bytesContent adapts an in-memory payload to io.ReadSeekCloser.
type bytesContent struct {
	*bytes.Reader
}

func newBytesContent(b []byte) *bytesContent {
	return &bytesContent{Reader: bytes.NewReader(b)}
}

func (*bytesContent) Close() error { return nil }

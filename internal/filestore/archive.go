package filestore

import "context"

// Archive is a fully built archive ready to send.
type Archive struct {
	Data      []byte
	MediaType string
	Filename  string
	Entries   int
}

// Archiver builds an archive over a resolved file or directory.
// A directory contributes the regular files directly inside it.
type Archiver interface {
	BuildArchive(ctx context.Context, target *Path, codec Codec) (*Archive, error)
}

package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"filestore/internal/filestore"
)

// entry is one file going into an archive.
type entry struct {
	name    string
	size    int64
	modTime time.Time
	open    func() (io.ReadCloser, error)
}

// strategy writes entries to w in one archive format.
type strategy func(ctx context.Context, w io.Writer, entries []entry) error

// strategies maps each codec to its writer. Adding a codec means adding a
// row here and a Codec constant.
var strategies = map[filestore.Codec]strategy{
	filestore.CodecZip:      writeZip,
	filestore.CodecTarGzip:  writeTarGzip,
	filestore.CodecSevenZip: writeSevenZip,
}

// Engine builds archives over files in a FilesystemManager.
type Engine struct {
	fsmgr filestore.FilesystemManager
}

var _ filestore.Archiver = (*Engine)(nil)

// NewEngine creates an archive engine reading through fsmgr.
func NewEngine(fsmgr filestore.FilesystemManager) *Engine {
	return &Engine{fsmgr: fsmgr}
}

// BuildArchive archives target in codec. A file yields a single entry; a
// directory yields one entry per regular file directly inside it.
func (e *Engine) BuildArchive(ctx context.Context, target *filestore.Path, codec filestore.Codec) (*filestore.Archive, error) {
	write, ok := strategies[codec]
	if !ok {
		return nil, fmt.Errorf("%w: %s", filestore.ErrUnsupportedCodec, codec)
	}

	entries, err := e.collect(target)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := write(ctx, &buf, entries); err != nil {
		return nil, err
	}

	return &filestore.Archive{
		Data:      buf.Bytes(),
		MediaType: codec.MediaType(),
		Filename:  codec.Filename(),
		Entries:   len(entries),
	}, nil
}

func (e *Engine) collect(target *filestore.Path) ([]entry, error) {
	paths := []*filestore.Path{target}
	if target.IsDir() {
		found, err := e.fsmgr.FindFiles(target)
		if err != nil {
			return nil, &filestore.StorageIOError{Op: "list", Path: target.String(), Err: err}
		}
		paths = found
	}

	entries := make([]entry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, entry{
			name:    path.Base(p.String()),
			size:    p.Info().Size(),
			modTime: p.Info().ModTime(),
			open: func() (io.ReadCloser, error) {
				rc, err := e.fsmgr.Open(p)
				if err != nil {
					return nil, &filestore.StorageIOError{Op: "open", Path: p.String(), Err: err}
				}
				return rc, nil
			},
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, nil
}

// readEntry returns the whole content of en. A file that changed size since
// it was listed is an error.
func readEntry(en entry) ([]byte, error) {
	rc, err := en.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &filestore.StorageIOError{Op: "read", Path: en.name, Err: err}
	}
	if int64(len(data)) != en.size {
		return nil, &filestore.StorageIOError{Op: "read", Path: en.name, Err: fmt.Errorf("size changed from %d to %d bytes", en.size, len(data))}
	}
	return data, nil
}

// copyEntry streams en into w.
func copyEntry(w io.Writer, en entry) error {
	rc, err := en.open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if _, err := io.CopyN(w, rc, en.size); err != nil {
		return &filestore.StorageIOError{Op: "read", Path: en.name, Err: err}
	}
	return nil
}

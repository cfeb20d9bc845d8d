package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

func writeTarGzip(ctx context.Context, w io.Writer, entries []entry) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	for _, en := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     en.name,
			Mode:     0644,
			Size:     en.size,
			ModTime:  en.modTime,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("adding %s to tar: %w", en.name, err)
		}
		if err := copyEntry(tw, en); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finishing tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("finishing gzip: %w", err)
	}
	return nil
}

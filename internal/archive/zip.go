package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

func writeZip(ctx context.Context, w io.Writer, entries []entry) error {
	zw := zip.NewWriter(w)

	for _, en := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     en.name,
			Method:   zip.Deflate,
			Modified: en.modTime,
		})
		if err != nil {
			return fmt.Errorf("adding %s to zip: %w", en.name, err)
		}
		if err := copyEntry(fw, en); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing zip: %w", err)
	}
	return nil
}

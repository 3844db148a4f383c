package datasource

import (
	"context"
	"fmt"
	"io"
	"os"
)

// FileSource opens a page file from disk. It is the load-from-directory
// counterpart to httpds.Source: internal/stager opens every page through a
// Source so the same reader-producing contract serves both an HTTP
// extraction and a pre-staged directory of page files.
type FileSource struct {
	Path string
}

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("datasource: opening %s: %w", s.Path, err)
	}
	return f, nil
}

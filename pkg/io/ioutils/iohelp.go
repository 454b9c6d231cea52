package ioutils

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strings"
)

// OpenMaybeCompressed opens a file and returns a reader, transparently
// decompressing gzip detected by extension or magic bytes.
func OpenMaybeCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return readCloser{Reader: zr, closeFn: func() error { _ = zr.Close(); return f.Close() }}, nil
	}
	br := bufio.NewReader(f)
	b, err := br.Peek(2)
	if err == nil && len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return readCloser{Reader: zr, closeFn: f.Close}, nil
	}
	return readCloser{Reader: br, closeFn: f.Close}, nil
}

// WrapMaybeCompressed wraps w in a gzip writer when the destination name
// calls for it. Callers own closing the returned writer before the
// underlying file.
func WrapMaybeCompressed(name string, w io.Writer) io.WriteCloser {
	if strings.HasSuffix(name, ".gz") {
		return gzip.NewWriter(w)
	}
	return nopWriteCloser{Writer: bufio.NewWriter(w)}
}

type readCloser struct {
	io.Reader
	closeFn func() error
}

func (r readCloser) Close() error { return r.closeFn() }

type nopWriteCloser struct{ io.Writer }

func (n nopWriteCloser) Close() error {
	if bw, ok := n.Writer.(*bufio.Writer); ok {
		return bw.Flush()
	}
	return nil
}

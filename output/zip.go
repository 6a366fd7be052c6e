package output

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"time"

	"github.com/tsawler/bindery/format"
)

// ZipWriter writes an EPUB archive. The mimetype entry is always the first
// entry and is stored uncompressed; it is written automatically before the
// first other file if the caller has not written it.
type ZipWriter struct {
	// Modified is stamped on every entry.
	Modified time.Time

	zw       *zip.Writer
	closer   io.Closer
	names    map[string]bool
	mimetype bool
}

// NewZipWriter writes an archive to w. Closing the ZipWriter finishes the
// archive but does not close w.
func NewZipWriter(w io.Writer) *ZipWriter {
	return &ZipWriter{zw: zip.NewWriter(w), names: make(map[string]bool)}
}

// CreateZip creates the archive file at path. Close finishes the archive
// and closes the file.
func CreateZip(path string) (*ZipWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &IOError{Op: "create", Path: path, Err: err}
	}
	z := NewZipWriter(f)
	z.closer = f
	return z, nil
}

func (z *ZipWriter) create(op, name string, method uint16) (io.Writer, error) {
	modified := z.Modified
	if method == zip.Store {
		// No extra field on stored entries, so the mimetype sits at offset 38.
		modified = time.Time{}
	}
	clean, err := cleanName(op, name)
	if err != nil {
		return nil, err
	}
	if z.names[clean] {
		return nil, &IOError{Op: op, Path: clean, Err: errors.New("duplicate entry")}
	}
	w, err := z.zw.CreateHeader(&zip.FileHeader{
		Name:     clean,
		Method:   method,
		Modified: modified,
	})
	if err != nil {
		return nil, &IOError{Op: op, Path: clean, Err: err}
	}
	z.names[clean] = true
	return w, nil
}

func (z *ZipWriter) writeMimetype(data []byte) error {
	w, err := z.create("write", MimetypeFile, zip.Store)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return &IOError{Op: "write", Path: MimetypeFile, Err: err}
	}
	z.mimetype = true
	return nil
}

func (z *ZipWriter) ensureMimetype() error {
	if z.mimetype {
		return nil
	}
	return z.writeMimetype([]byte(format.EPUB))
}

// WriteFile adds a deflated entry.
func (z *ZipWriter) WriteFile(name string, data []byte) error {
	if name == MimetypeFile {
		if z.mimetype {
			return nil
		}
		return z.writeMimetype(data)
	}
	if err := z.ensureMimetype(); err != nil {
		return err
	}

	w, err := z.create("write", name, zip.Deflate)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return &IOError{Op: "write", Path: name, Err: err}
	}
	return nil
}

// CopyFile adds the contents of source as a deflated entry.
func (z *ZipWriter) CopyFile(name, source string) error {
	if err := z.ensureMimetype(); err != nil {
		return err
	}

	in, err := os.Open(source)
	if err != nil {
		return &IOError{Op: "open", Path: source, Err: err}
	}
	defer in.Close()

	w, err := z.create("copy", name, zip.Deflate)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		return &IOError{Op: "copy", Path: name, Err: err}
	}
	return nil
}

// Close finishes the archive.
func (z *ZipWriter) Close() error {
	if err := z.ensureMimetype(); err != nil {
		return err
	}
	if err := z.zw.Close(); err != nil {
		return &IOError{Op: "close", Path: "archive", Err: err}
	}
	if z.closer != nil {
		if err := z.closer.Close(); err != nil {
			return &IOError{Op: "close", Path: "archive", Err: err}
		}
	}
	return nil
}

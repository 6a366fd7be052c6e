package output

import (
	"io"
	"os"
	"path/filepath"
)

// DirWriter writes files into a directory on disk.
type DirWriter struct {
	Root string
}

// NewDirWriter creates root if needed.
func NewDirWriter(root string) (*DirWriter, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: root, Err: err}
	}
	return &DirWriter{Root: root}, nil
}

func (d *DirWriter) target(op, name string) (string, error) {
	clean, err := cleanName(op, name)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(d.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", &IOError{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
	}
	return dst, nil
}

// WriteFile writes data to name below the root.
func (d *DirWriter) WriteFile(name string, data []byte) error {
	dst, err := d.target("write", name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return &IOError{Op: "write", Path: dst, Err: err}
	}
	return nil
}

// CopyFile copies source to name below the root.
func (d *DirWriter) CopyFile(name, source string) error {
	dst, err := d.target("copy", name)
	if err != nil {
		return err
	}

	in, err := os.Open(source)
	if err != nil {
		return &IOError{Op: "open", Path: source, Err: err}
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return &IOError{Op: "create", Path: dst, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &IOError{Op: "copy", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		return &IOError{Op: "close", Path: dst, Err: err}
	}
	return nil
}

// Close is a no-op.
func (d *DirWriter) Close() error { return nil }

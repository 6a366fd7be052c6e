package resource

import (
	"io/fs"
	"time"
)

// stubStater reports every path as an existing regular file.
type stubStater struct{}

func (s stubStater) Stat(name string) (fs.FileInfo, error) {
	return stubInfo{name: name}, nil
}

type stubInfo struct{ name string }

func (i stubInfo) Name() string       { return i.name }
func (i stubInfo) Size() int64        { return 1 }
func (i stubInfo) Mode() fs.FileMode  { return 0o644 }
func (i stubInfo) ModTime() time.Time { return time.Time{} }
func (i stubInfo) IsDir() bool        { return false }
func (i stubInfo) Sys() any           { return nil }

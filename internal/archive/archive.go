// =============================================================================
// Mineral Statistics ETL - In-Memory Archives
// =============================================================================
//
// Release archives are downloaded fully into memory and read from there; no
// temporary files are written.
//
// =============================================================================

package archive

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Archive is a downloaded ZIP attachment held in memory.
type Archive struct {
	// Name is the attachment name as published (e.g. "MCS2022_World_Data.zip").
	Name string

	// Data is the raw archive content.
	Data []byte
}

// Members lists the names of the files in the archive, in archive order.
// Directory entries are omitted.
func (a Archive) Members() ([]string, error) {
	zr, err := a.reader()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names, nil
}

// Open returns a reader over the member called name. The caller closes it.
func (a Archive) Open(name string) (io.ReadCloser, error) {
	zr, err := a.reader()
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open %s in %s: %w", name, a.Name, err)
			}
			return rc, nil
		}
	}
	return nil, fmt.Errorf("member %s not found in %s", name, a.Name)
}

// ReadMember returns the full content of the member called name.
func (a Archive) ReadMember(name string) ([]byte, error) {
	rc, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s in %s: %w", name, a.Name, err)
	}
	return data, nil
}

func (a Archive) reader() (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(a.Data), int64(len(a.Data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", a.Name, err)
	}
	return zr, nil
}

// Base returns the lower-cased last path element of a member name, which is
// what allow-lists are matched against.
func Base(name string) string {
	return strings.ToLower(path.Base(name))
}

// Build writes files into a new archive. Names are written in the order
// given by names; files must contain an entry for each.
func Build(name string, names []string, files map[string][]byte) (Archive, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range names {
		w, err := zw.Create(n)
		if err != nil {
			return Archive{}, fmt.Errorf("failed to add %s: %w", n, err)
		}
		if _, err := w.Write(files[n]); err != nil {
			return Archive{}, fmt.Errorf("failed to write %s: %w", n, err)
		}
	}
	if err := zw.Close(); err != nil {
		return Archive{}, fmt.Errorf("failed to close archive: %w", err)
	}
	return Archive{Name: name, Data: buf.Bytes()}, nil
}

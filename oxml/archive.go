package oxml

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Archive is the destination of a write or of a package commit. Nothing is
// visible at the final location before Finalize succeeds.
type Archive struct {
	writer *zip.Writer
	names  map[string]struct{}

	file *os.File
	path string

	done   bool
	closed bool
}

// CreateArchive writes to a temporary file next to path, renamed to path
// when the archive is finalized.
func CreateArchive(path string) (*Archive, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+"-*")
	if err != nil {
		return nil, err
	}
	a := newArchive(f)
	a.file = f
	a.path = path
	return a, nil
}

func NewArchive(w io.Writer) *Archive {
	return newArchive(w)
}

func newArchive(w io.Writer) *Archive {
	a := Archive{
		writer: zip.NewWriter(w),
		names:  make(map[string]struct{}),
	}
	a.setLevel(flate.BestCompression)
	return &a
}

func (a *Archive) setLevel(level int) {
	a.writer.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
}

func (a *Archive) Create(name string) (io.Writer, error) {
	hdr := zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	return a.createHeader(&hdr)
}

func (a *Archive) createHeader(hdr *zip.FileHeader) (io.Writer, error) {
	if err := a.register(hdr.Name); err != nil {
		return nil, err
	}
	return a.writer.CreateHeader(hdr)
}

func (a *Archive) copy(f *zip.File) error {
	if err := a.register(f.Name); err != nil {
		return err
	}
	return a.writer.Copy(f)
}

func (a *Archive) register(name string) error {
	if a.done || a.closed {
		return ErrClosed
	}
	key := normalizeName(name)
	if _, ok := a.names[key]; ok {
		return fmt.Errorf("%w: duplicate entry %s", ErrPackage, name)
	}
	a.names[key] = struct{}{}
	return nil
}

// Finalize writes the central directory and moves the archive to its final
// location.
func (a *Archive) Finalize() error {
	if a.done || a.closed {
		return ErrClosed
	}
	a.done = true
	if err := a.writer.Close(); err != nil {
		a.discard()
		return err
	}
	if a.file == nil {
		return nil
	}
	if err := a.file.Close(); err != nil {
		os.Remove(a.file.Name())
		return err
	}
	if err := os.Rename(a.file.Name(), a.path); err != nil {
		os.Remove(a.file.Name())
		return err
	}
	return nil
}

// Close aborts an archive that was not finalized. The central directory is
// never written and the temporary file is removed.
func (a *Archive) Close() error {
	if a.done || a.closed {
		return nil
	}
	a.closed = true
	a.discard()
	return nil
}

func (a *Archive) discard() {
	if a.file == nil {
		return
	}
	a.file.Close()
	os.Remove(a.file.Name())
}

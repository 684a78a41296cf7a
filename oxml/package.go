package oxml

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const contentTypesFile = "[Content_Types].xml"

var zipMagic = []byte("PK\x03\x04")

// Package gives access to the parts of an OOXML package and lets them be
// replaced, removed or added. Changes are staged until Commit copies the
// package into an Archive.
type Package struct {
	reader  *zip.Reader
	closer  io.Closer
	entries map[string]*zip.File
	tempDir string

	updates map[string]*spool
	created []*spool
	removed map[string]struct{}

	closed bool
}

type spool struct {
	name string
	file *os.File
}

func OpenPackage(file string) (*Package, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	info, err := r.Stat()
	if err != nil {
		r.Close()
		return nil, err
	}
	pkg, err := ReadPackage(r, info.Size())
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	pkg.closer = r
	return pkg, nil
}

func ReadPackage(r io.ReaderAt, size int64) (*Package, error) {
	magic := make([]byte, len(zipMagic))
	if n, _ := r.ReadAt(magic, 0); n < len(magic) || !bytes.Equal(magic, zipMagic) {
		return nil, fmt.Errorf("%w: not a zip archive", ErrPackage)
	}
	z, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPackage, err)
	}
	pkg := Package{
		reader:  z,
		entries: make(map[string]*zip.File),
		updates: make(map[string]*spool),
		removed: make(map[string]struct{}),
	}
	for _, f := range z.File {
		pkg.entries[normalizeName(f.Name)] = f
	}
	if !pkg.Has(contentTypesFile) {
		return nil, fmt.Errorf("%w: %s missing", ErrPackage, contentTypesFile)
	}
	return &pkg, nil
}

func (p *Package) Has(name string) bool {
	_, ok := p.entries[normalizeName(name)]
	return ok
}

func (p *Package) Entries() []string {
	var list []string
	for _, f := range p.reader.File {
		list = append(list, f.Name)
	}
	return list
}

func (p *Package) Open(name string) (io.ReadCloser, error) {
	if p.closed {
		return nil, ErrClosed
	}
	f, ok := p.entries[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrPackage, name, err)
	}
	return rc, nil
}

// Update stages a replacement for an existing entry. The returned writer
// receives the full new content of the entry.
func (p *Package) Update(name string) (io.Writer, error) {
	if p.closed {
		return nil, ErrClosed
	}
	key := normalizeName(name)
	if _, ok := p.entries[key]; !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrFound)
	}
	if s, ok := p.updates[key]; ok {
		s.release()
	}
	s, err := p.createSpool(name)
	if err != nil {
		return nil, err
	}
	p.updates[key] = s
	delete(p.removed, key)
	return s.file, nil
}

func (p *Package) Create(name string) (io.Writer, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if p.Has(name) {
		return p.Update(name)
	}
	s, err := p.createSpool(name)
	if err != nil {
		return nil, err
	}
	p.created = append(p.created, s)
	return s.file, nil
}

func (p *Package) Remove(name string) error {
	if p.closed {
		return ErrClosed
	}
	key := normalizeName(name)
	if _, ok := p.entries[key]; !ok {
		return fmt.Errorf("%s: %w", name, ErrFound)
	}
	if s, ok := p.updates[key]; ok {
		s.release()
		delete(p.updates, key)
	}
	p.removed[key] = struct{}{}
	return nil
}

// Commit writes every entry of the package to the archive: untouched entries
// are copied without being recompressed, staged entries are written from
// their spool. The archive is not finalized.
func (p *Package) Commit(ctx context.Context, a *Archive) error {
	if p.closed {
		return ErrClosed
	}
	var (
		copied  int
		updated int
	)
	for _, f := range p.reader.File {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %s", ErrCancelled, err)
		}
		key := normalizeName(f.Name)
		if _, ok := p.removed[key]; ok {
			continue
		}
		if s, ok := p.updates[key]; ok {
			hdr := zip.FileHeader{
				Name:     f.Name,
				Method:   zip.Deflate,
				Modified: f.Modified,
			}
			if err := s.writeTo(a, &hdr); err != nil {
				return err
			}
			updated++
			continue
		}
		if err := a.copy(f); err != nil {
			return err
		}
		copied++
	}
	for _, s := range p.created {
		hdr := zip.FileHeader{
			Name:   s.name,
			Method: zip.Deflate,
		}
		if err := s.writeTo(a, &hdr); err != nil {
			return err
		}
	}
	zerolog.Ctx(ctx).Debug().
		Int("copied", copied).
		Int("updated", updated).
		Int("created", len(p.created)).
		Int("removed", len(p.removed)).
		Msg("package committed")
	return nil
}

// Rollback drops every staged change.
func (p *Package) Rollback() {
	for k, s := range p.updates {
		s.release()
		delete(p.updates, k)
	}
	for _, s := range p.created {
		s.release()
	}
	p.created = nil
	clear(p.removed)
}

func (p *Package) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.Rollback()
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

func (p *Package) createSpool(name string) (*spool, error) {
	f, err := os.CreateTemp(p.tempDir, "xlstream-*.part")
	if err != nil {
		return nil, err
	}
	s := spool{
		name: strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "/"),
		file: f,
	}
	return &s, nil
}

func (s *spool) writeTo(a *Archive, hdr *zip.FileHeader) error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	w, err := a.createHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, s.file)
	return err
}

func (s *spool) release() {
	s.file.Close()
	os.Remove(s.file.Name())
}

func normalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "/")
	return strings.ToLower(name)
}

// Package store keeps template source on an afero filesystem, one
// "<name>.jsx" file per template.
package store

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/types"
	"github.com/conneroisu/reportsmith/internal/validation"
)

// TemplateStore is durable template storage.
type TemplateStore interface {
	Read(name string) (*types.TemplateRecord, error)
	Save(name, source string) (*types.TemplateRecord, error)
	Delete(name string) error
	Rename(from, to string) (*types.TemplateRecord, error)
	List() ([]*types.TemplateRecord, error)
}

// Fingerprint returns the CRC32 checksum of source as hex.
func Fingerprint(source string) string {
	return fmt.Sprintf("%x", crc32.ChecksumIEEE([]byte(source)))
}

// FileStore stores templates under a directory of an afero filesystem.
type FileStore struct {
	fs  afero.Fs
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapIO(err, fmt.Sprintf("creating template directory %s", dir))
	}
	return &FileStore{fs: fs, dir: dir}, nil
}

// NewOSStore is a FileStore on the operating system filesystem.
func NewOSStore(dir string) (*FileStore, error) {
	return NewFileStore(afero.NewOsFs(), dir)
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the file path of a template.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+validation.TemplateExtension)
}

// Read loads a template.
func (s *FileStore) Read(name string) (*types.TemplateRecord, error) {
	if err := validation.ValidateTemplateName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(name)
}

func (s *FileStore) read(name string) (*types.TemplateRecord, error) {
	path := s.Path(name)
	info, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(name, err)
		}
		return nil, errors.WrapIO(err, "reading template "+name)
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, errors.WrapIO(err, "reading template "+name)
	}
	source := string(data)
	return &types.TemplateRecord{
		Name:        name,
		Source:      source,
		Fingerprint: Fingerprint(source),
		ModTime:     info.ModTime(),
	}, nil
}

// Save writes a template, replacing any previous content.
func (s *FileStore) Save(name, source string) (*types.TemplateRecord, error) {
	if err := validation.ValidateTemplateName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := afero.WriteFile(s.fs, s.Path(name), []byte(source), 0o644); err != nil {
		return nil, errors.WrapIO(err, "writing template "+name)
	}
	return s.read(name)
}

// Delete removes a template.
func (s *FileStore) Delete(name string) error {
	if err := validation.ValidateTemplateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.Path(name)); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError(name, err)
		}
		return errors.WrapIO(err, "deleting template "+name)
	}
	return nil
}

// Rename moves a template to a new name. The target must not exist.
func (s *FileStore) Rename(from, to string) (*types.TemplateRecord, error) {
	if err := validation.ValidateTemplateName(from); err != nil {
		return nil, err
	}
	if err := validation.ValidateTemplateName(to); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.fs.Stat(s.Path(from)); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(from, err)
		}
		return nil, errors.WrapIO(err, "renaming template "+from)
	}
	if exists, _ := afero.Exists(s.fs, s.Path(to)); exists {
		return nil, errors.NewValidationError(errors.ErrCodeTemplateExists,
			fmt.Sprintf("template %s already exists", to)).WithTemplate(to)
	}
	if err := s.fs.Rename(s.Path(from), s.Path(to)); err != nil {
		return nil, errors.WrapIO(err, "renaming template "+from)
	}
	return s.read(to)
}

// List returns every stored template sorted by name. Files whose stem is
// not a valid template name are skipped.
func (s *FileStore) List() ([]*types.TemplateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, errors.WrapIO(err, "listing templates")
	}

	records := make([]*types.TemplateRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != validation.TemplateExtension {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if validation.ValidateTemplateName(name) != nil {
			continue
		}
		record, err := s.read(name)
		if err != nil {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

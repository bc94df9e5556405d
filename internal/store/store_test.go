package store

import (
	"fmt"
	"hash/crc32"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/reportsmith/internal/errors"
)

func newMemStore(t *testing.T) (*FileStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := NewFileStore(fs, "/templates")
	require.NoError(t, err)
	return s, fs
}

func TestSaveAndRead(t *testing.T) {
	s, fs := newMemStore(t)
	src := "module.exports = () => <p>hi</p>;"

	saved, err := s.Save("greeting", src)
	require.NoError(t, err)
	assert.Equal(t, "greeting", saved.Name)
	assert.Equal(t, Fingerprint(src), saved.Fingerprint)

	exists, err := afero.Exists(fs, "/templates/greeting.jsx")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.Read("greeting")
	require.NoError(t, err)
	assert.Equal(t, src, got.Source)
	assert.Equal(t, saved.Fingerprint, got.Fingerprint)
}

func TestSaveReplaces(t *testing.T) {
	s, _ := newMemStore(t)
	first, err := s.Save("r", "a")
	require.NoError(t, err)
	second, err := s.Save("r", "b")
	require.NoError(t, err)

	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)
	got, err := s.Read("r")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Source)
}

func TestReadMissing(t *testing.T) {
	s, _ := newMemStore(t)
	_, err := s.Read("ghost")

	require.Error(t, err)
	var re *errors.ReportError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, errors.ErrCodeTemplateNotFound, re.Code)
	assert.Equal(t, 404, re.Status)
}

func TestInvalidNamesNeverTouchStorage(t *testing.T) {
	s, fs := newMemStore(t)

	for _, name := range []string{"../escape", "a/b", "", "x.jsx"} {
		_, err := s.Save(name, "x")
		assert.Error(t, err, name)
		assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err), name)
	}

	exists, _ := afero.Exists(fs, "/escape.jsx")
	assert.False(t, exists)
}

func TestDelete(t *testing.T) {
	s, _ := newMemStore(t)
	_, err := s.Save("doomed", "x")
	require.NoError(t, err)

	require.NoError(t, s.Delete("doomed"))
	_, err = s.Read("doomed")
	assert.Error(t, err)

	err = s.Delete("doomed")
	assert.Equal(t, errors.ErrorTypeIO, errors.TypeOf(err))
}

func TestRename(t *testing.T) {
	s, _ := newMemStore(t)
	_, err := s.Save("old", "x")
	require.NoError(t, err)
	_, err = s.Save("taken", "y")
	require.NoError(t, err)

	renamed, err := s.Rename("old", "new")
	require.NoError(t, err)
	assert.Equal(t, "new", renamed.Name)
	assert.Equal(t, "x", renamed.Source)

	_, err = s.Read("old")
	assert.Error(t, err)

	_, err = s.Rename("new", "taken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = s.Rename("ghost", "other")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	s, fs := newMemStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := s.Save(name, name)
		require.NoError(t, err)
	}
	require.NoError(t, afero.WriteFile(fs, "/templates/notes.txt", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/templates/bad name.jsx", []byte("x"), 0o644))
	require.NoError(t, fs.MkdirAll("/templates/nested.jsx", 0o755))

	records, err := s.List()
	require.NoError(t, err)

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, fmt.Sprintf("%x", crc32.ChecksumIEEE([]byte("abc"))), Fingerprint("abc"))
	assert.NotEqual(t, Fingerprint("abc"), Fingerprint("abd"))
}

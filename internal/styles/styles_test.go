package styles

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, files map[string]string) *FileResolver {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, "/styles/"+name, []byte(content), 0o644))
	}
	return NewFileResolver(fs, "/styles")
}

func TestResolveYAML(t *testing.T) {
	r := newResolver(t, map[string]string{
		"light-01.yaml": "container:\n  padding: 40px\n  maxWidth: 1200px\nheader:\n  fontSize: 2.5rem\n",
	})

	got, err := r.Resolve("light-01")
	require.NoError(t, err)

	container, ok := got["container"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "40px", container["padding"])
	assert.Equal(t, "1200px", container["maxWidth"])
}

func TestResolveJSON(t *testing.T) {
	r := newResolver(t, map[string]string{
		"dark-01.json": `{"container": {"background": "#111", "padding": 20}}`,
	})

	got, err := r.Resolve("dark-01")
	require.NoError(t, err)
	container := got["container"].(map[string]interface{})
	assert.Equal(t, "#111", container["background"])
	assert.Equal(t, 20, container["padding"])
}

func TestResolveUnknownIsNil(t *testing.T) {
	r := newResolver(t, nil)

	got, err := r.Resolve("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = r.Resolve("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveRejectsTraversal(t *testing.T) {
	r := newResolver(t, nil)
	_, err := r.Resolve("../secrets")
	assert.Error(t, err)
}

func TestResolveMalformed(t *testing.T) {
	r := newResolver(t, map[string]string{"broken.yaml": "a: [1, 2\n"})
	_, err := r.Resolve("broken")
	assert.Error(t, err)
}

func TestExtensionPrecedence(t *testing.T) {
	r := newResolver(t, map[string]string{
		"print-01.yaml": "body:\n  color: black\n",
		"print-01.json": `{"body": {"color": "gray"}}`,
	})

	got, err := r.Resolve("print-01")
	require.NoError(t, err)
	assert.Equal(t, "black", got["body"].(map[string]interface{})["color"])
}

func TestList(t *testing.T) {
	r := newResolver(t, map[string]string{
		"light-02.yml":  "a: 1\n",
		"light-01.yaml": "a: 1\n",
		"light-01.json": "{}",
		"readme.md":     "# styles",
	})

	ids, err := r.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"light-01", "light-02"}, ids)
}

func TestStatic(t *testing.T) {
	s := Static{"a": {"x": 1}}
	got, err := s.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, 1, got["x"])

	got, err = s.Resolve("b")
	require.NoError(t, err)
	assert.Nil(t, got)
}

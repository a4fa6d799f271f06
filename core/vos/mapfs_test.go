package vos

import (
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingFs(t *testing.T) {
	base := afero.NewMemMapFs()
	var ops []string
	fs := NewTracingFs(base, func(op Op, name string) {
		ops = append(ops, op+" "+name)
	})

	require.NoError(t, fs.MkdirAll("/a", 0755))
	require.NoError(t, afero.WriteFile(fs, "/a/f", []byte("x"), 0644))
	_, err := fs.Stat("/a/f")
	require.NoError(t, err)
	require.NoError(t, fs.Remove("/a/f"))

	assert.Equal(t, []string{"mkdir /a", "open /a/f", "stat /a/f", "remove /a/f"}, ops)
}

func TestRootedFs(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/jail/etc", 0755))
	require.NoError(t, afero.WriteFile(base, "/jail/etc/motd", []byte("hi"), 0644))
	require.NoError(t, afero.WriteFile(base, "/secret", []byte("no"), 0644))

	fs := NewRootedFs(base, "/jail")

	data, err := afero.ReadFile(fs, "/etc/motd")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	_, err = fs.Stat("/../secret")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	f, err := fs.Open("/etc/motd")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "/etc/motd", f.Name())
	assert.True(t, IsDir(fs, "/etc"))
}

func TestMappingFs_error(t *testing.T) {
	denied := errors.New("denied")
	fs := NewMappingFs(afero.NewMemMapFs(), func(op Op, name string) (string, error) {
		return "", denied
	})

	_, err := fs.Open("/x")
	assert.True(t, errors.Is(err, denied))

	var pe *os.PathError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, OpOpen, pe.Op)
	assert.Equal(t, "/x", pe.Path)
}

func TestOSFile(t *testing.T) {
	fs := NewTracingFs(afero.NewOsFs(), func(Op, string) {})
	f, err := fs.Create(t.TempDir() + "/out")
	require.NoError(t, err)
	defer f.Close()

	osf, ok := OSFile(f)
	assert.True(t, ok)
	assert.NotNil(t, osf)

	_, ok = OSFile(&struct{}{})
	assert.False(t, ok)
}

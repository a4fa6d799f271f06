package vos

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookPath(t *testing.T) {
	vfs := NewMemFs()
	require.NoError(t, afero.WriteFile(vfs, "/bin/ls", []byte("#!"), 0755))
	require.NoError(t, afero.WriteFile(vfs, "/usr/bin/ls", []byte("#!"), 0755))
	require.NoError(t, afero.WriteFile(vfs, "/bin/readme", []byte("text"), 0644))
	require.NoError(t, afero.WriteFile(vfs, "/home/user/run", []byte("#!"), 0755))
	require.NoError(t, vfs.MkdirAll("/bin/dir", 0755))

	cases := map[string]struct {
		path    string
		file    string
		want    string
		wantErr error
	}{
		"first match wins":     {path: "/bin:/usr/bin", file: "ls", want: "/bin/ls"},
		"order matters":        {path: "/usr/bin:/bin", file: "ls", want: "/usr/bin/ls"},
		"missing":              {path: "/bin", file: "nope", wantErr: ErrNotFound},
		"not executable":       {path: "/bin", file: "readme", wantErr: fs.ErrPermission},
		"directory":            {path: "/bin", file: "dir", wantErr: fs.ErrPermission},
		"empty element is dot": {path: ":/bin", file: "run", want: "/home/user/run"},
		"slash skips path":     {path: "/bin", file: "./run", want: "./run"},
		"slash missing":        {path: "/bin", file: "./ls", wantErr: ErrNotFound},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got, err := LookPath(vfs, "/home/user", tc.path, tc.file)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRealpath(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "real", "sub"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "abs")))
	require.NoError(t, os.Symlink("real/sub", filepath.Join(dir, "rel")))
	require.NoError(t, os.Symlink("loop", filepath.Join(dir, "loop")))

	vfs := NewOsFs()

	got, err := Realpath(vfs, filepath.Join(dir, "abs", "sub"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "real", "sub"), got)

	got, err = Realpath(vfs, filepath.Join(dir, "rel")+"/..")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "real"), got)

	_, err = Realpath(vfs, filepath.Join(dir, "loop"))
	assert.ErrorIs(t, err, errTooManyLinks)

	_, err = Realpath(vfs, filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestBridge(t *testing.T) {
	t.Run("os files pass through", func(t *testing.T) {
		b, err := WriterFile(os.Stderr)
		require.NoError(t, err)
		assert.Same(t, os.Stderr, b.File)
		b.Started()
		assert.NoError(t, b.Wait())
	})

	t.Run("writer", func(t *testing.T) {
		var buf bytes.Buffer
		b, err := WriterFile(&buf)
		require.NoError(t, err)

		// The child's end is written to directly; Started closes it.
		_, err = io.WriteString(b.File, "hello")
		require.NoError(t, err)
		b.Started()

		require.NoError(t, b.Wait())
		assert.Equal(t, "hello", buf.String())
	})

	t.Run("reader", func(t *testing.T) {
		b, err := ReaderFile(strings.NewReader("input"))
		require.NoError(t, err)
		got, err := io.ReadAll(b.File)
		require.NoError(t, err)
		assert.Equal(t, "input", string(got))
		b.Started()
		assert.NoError(t, b.Wait())
	})
}

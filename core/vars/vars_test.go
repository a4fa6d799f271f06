package vars

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGet(t *testing.T) {
	s := NewStore()

	_, ok := s.Get("FOO")
	assert.False(t, ok)

	require.NoError(t, s.Set("FOO", "bar", 0))
	v, ok := s.Get("FOO")
	assert.True(t, ok)
	assert.Equal(t, "bar", v.Value)
	assert.False(t, v.Exported())

	require.NoError(t, s.Set("FOO", "", 0))
	v, ok = s.Get("FOO")
	assert.True(t, ok, "set to empty is still set")
	assert.Equal(t, "", v.Value)
}

func TestStore_InvalidNames(t *testing.T) {
	s := NewStore()

	cases := map[string]error{
		"?":   ErrSpecial,
		"1":   ErrSpecial,
		"12":  ErrSpecial,
		"@":   ErrSpecial,
		"1a":  ErrInvalidName,
		"a-b": ErrInvalidName,
		"":    ErrInvalidName,
	}

	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			err := s.Set(name, "x", 0)
			assert.True(t, errors.Is(err, want), "got %v", err)
		})
	}
}

func TestStore_ReadOnly(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set("X", "1", AttrReadOnly))

	err := s.Set("X", "2", 0)
	assert.True(t, errors.Is(err, ErrReadOnly))
	assert.EqualError(t, err, "X: readonly variable")
	assert.Equal(t, "1", s.Value("X"))

	assert.True(t, errors.Is(s.Unset("X"), ErrReadOnly))
	assert.Equal(t, "1", s.Value("X"))
}

func TestStore_Export(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetAttr("LATER", AttrExport))
	require.NoError(t, s.Set("PLAIN", "p", 0))
	require.NoError(t, s.Set("B", "2", AttrExport))
	require.NoError(t, s.Set("A", "1", AttrExport))

	// Exported but unset variables aren't in the environment.
	assert.Equal(t, []string{"A=1", "B=2"}, s.Environ())

	require.NoError(t, s.Set("LATER", "now", 0))
	assert.Equal(t, []string{"A=1", "B=2", "LATER=now"}, s.Environ())
}

func TestStore_Unset(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set("X", "1", AttrExport))
	require.NoError(t, s.Unset("X"))

	_, ok := s.Get("X")
	assert.False(t, ok)
	assert.Empty(t, s.Environ())

	// Unsetting something that doesn't exist isn't an error.
	assert.NoError(t, s.Unset("NEVER"))
}

func TestStore_Locals(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set("X", "global", AttrExport))

	assert.Error(t, s.DeclareLocal("X"), "local outside a function")

	s.PushScope()
	require.NoError(t, s.DeclareLocal("X"))
	assert.Equal(t, "global", s.Value("X"), "local inherits the outer value")

	require.NoError(t, s.Set("X", "inner", 0))
	require.NoError(t, s.Set("NEW", "n", 0))
	assert.Equal(t, "inner", s.Value("X"))
	assert.Equal(t, []string{"X=inner"}, s.Environ())

	require.NoError(t, s.Unset("X"))
	_, ok := s.Get("X")
	assert.False(t, ok, "unset local still shadows the global")

	s.PopScope()
	assert.Equal(t, "global", s.Value("X"))
	assert.Equal(t, "n", s.Value("NEW"), "assignments without local are global")
	assert.Equal(t, 0, s.Depth())
}

func TestStore_LocalReadOnly(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set("R", "1", AttrReadOnly))

	s.PushScope()
	defer s.PopScope()

	assert.True(t, errors.Is(s.DeclareLocal("R"), ErrReadOnly))
}

func TestStore_Clone(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set("X", "1", 0))

	c := s.Clone()
	require.NoError(t, c.Set("X", "2", 0))
	require.NoError(t, c.Set("Y", "3", 0))

	assert.Equal(t, "1", s.Value("X"))
	_, ok := s.Get("Y")
	assert.False(t, ok)
	assert.Equal(t, "2", c.Value("X"))
}

func TestStore_ImportEnviron(t *testing.T) {
	s := NewStore()
	s.ImportEnviron([]string{"HOME=/root", "BAD-NAME=x", "NOEQUALS", "EMPTY=", "EQ=a=b"})

	want := []string{"EMPTY=", "EQ=a=b", "HOME=/root"}
	if diff := cmp.Diff(want, s.Environ()); diff != "" {
		t.Errorf("Environ() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"EMPTY", "EQ", "HOME"}, s.Names())
}

func TestStore_SaveRestore(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set("kept", "old", 0))

	kept := s.Save("kept")
	fresh := s.Save("fresh")
	require.NoError(t, s.Set("kept", "temp", AttrExport))
	require.NoError(t, s.Set("fresh", "temp", AttrExport))
	assert.Equal(t, []string{"fresh=temp", "kept=temp"}, s.Environ())

	s.Restore(kept)
	s.Restore(fresh)

	v, ok := s.Get("kept")
	assert.True(t, ok)
	assert.Equal(t, Variable{Value: "old", Set: true}, v)
	_, ok = s.Get("fresh")
	assert.False(t, ok)
	assert.Empty(t, s.Environ())
}

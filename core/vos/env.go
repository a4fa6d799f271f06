package vos

import (
	"os"
	"sort"
	"strings"
	"sync"
)

// CopyEnv copies all the NAME=value pairs of environ into dst, replacing
// existing values.
func CopyEnv(dst *MapEnv, environ []string) {
	for _, e := range environ {
		split := strings.SplitN(e, "=", 2)
		key, value := split[0], ""
		if len(split) > 1 {
			value = split[1]
		}
		dst.Setenv(key, value)
	}
}

// NewMapEnv creates a new environment backed by a map.
func NewMapEnv() *MapEnv {
	return &MapEnv{}
}

// NewMapEnvFromEnvList creates a new environment from NAME=value pairs. Later
// duplicates win.
func NewMapEnvFromEnvList(environ []string) *MapEnv {
	out := &MapEnv{}
	CopyEnv(out, environ)
	return out
}

// MapEnv is an in-memory environment used to build the environment of child
// processes.
type MapEnv struct {
	rw  sync.RWMutex
	env map[string]string
}

// Unsetenv removes key.
func (m *MapEnv) Unsetenv(key string) {
	m.rw.Lock()
	defer m.rw.Unlock()
	if m.env != nil {
		delete(m.env, key)
	}
}

// Setenv sets key to value.
func (m *MapEnv) Setenv(key, value string) {
	m.rw.Lock()
	defer m.rw.Unlock()

	if m.env == nil {
		m.env = make(map[string]string)
	}
	m.env[key] = value
}

// LookupEnv retrieves the value of key and whether it was present.
func (m *MapEnv) LookupEnv(key string) (string, bool) {
	m.rw.RLock()
	defer m.rw.RUnlock()

	val, ok := m.env[key]
	return val, ok
}

// Getenv retrieves the value of key or the empty string.
func (m *MapEnv) Getenv(key string) string {
	val, _ := m.LookupEnv(key)
	return val
}

// ExpandEnv replaces $var and ${var} in s with values from the environment.
func (m *MapEnv) ExpandEnv(s string) string {
	return os.Expand(s, m.Getenv)
}

// Environ returns the sorted NAME=value pairs.
func (m *MapEnv) Environ() []string {
	m.rw.RLock()
	defer m.rw.RUnlock()

	env := make([]string, 0, len(m.env))
	for k, v := range m.env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

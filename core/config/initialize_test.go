package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitialize(t *testing.T) {
	tempDir := t.TempDir()
	if _, err := Initialize(tempDir, log.New(io.Discard, "", 0)); err != nil {
		t.Fatal(err)
	}

	// Check that the config is valid
	cfg, err := Load(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, tempDir, cfg.Dir())

	t.Run("OpenAuditLog", func(t *testing.T) {
		cfg.AuditLog = "audit.log"
		fd, err := cfg.OpenAuditLog()
		assert.Nil(t, err)
		fd.Write([]byte("{}\n"))
		fd.Close()

		fd, err = cfg.ReadAuditLog()
		assert.Nil(t, err)
		fd.Close()
	})

	t.Run("OpenAuditLog disabled", func(t *testing.T) {
		cfg.AuditLog = ""
		fd, err := cfg.OpenAuditLog()
		assert.Nil(t, err)
		assert.Nil(t, fd)
	})

	t.Run("existing config kept", func(t *testing.T) {
		path := filepath.Join(tempDir, ConfigurationName)
		assert.Nil(t, os.WriteFile(path, []byte("color: never\n"), 0600))

		_, err := Initialize(tempDir, log.New(io.Discard, "", 0))
		assert.Nil(t, err)

		data, err := os.ReadFile(path)
		assert.Nil(t, err)
		assert.Equal(t, "color: never\n", string(data))
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing directory uses defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing"))
		assert.Nil(t, err)
		assert.Equal(t, "auto", cfg.Color)
		assert.Equal(t, "ls -l", cfg.Aliases["ll"])
	})

	t.Run("overrides", func(t *testing.T) {
		dir := t.TempDir()
		contents := "color: always\noptions:\n  pipefail: true\n  monitor: false\nenv:\n  EDITOR: vi\n"
		assert.Nil(t, os.WriteFile(filepath.Join(dir, ConfigurationName), []byte(contents), 0600))

		cfg, err := Load(filepath.Join(dir, ConfigurationName))
		assert.Nil(t, err)
		assert.Equal(t, "always", cfg.Color)
		assert.True(t, cfg.Options.PipeFail)
		if assert.NotNil(t, cfg.Options.Monitor) {
			assert.False(t, *cfg.Options.Monitor)
		}
		assert.Equal(t, []string{"EDITOR=vi"}, cfg.Environ())
		assert.Equal(t, 500, cfg.HistoryLimit)
	})

	t.Run("unknown field", func(t *testing.T) {
		dir := t.TempDir()
		assert.Nil(t, os.WriteFile(filepath.Join(dir, ConfigurationName), []byte("colour: always\n"), 0600))

		_, err := Load(dir)
		assert.Error(t, err)
	})

	t.Run("invalid value", func(t *testing.T) {
		dir := t.TempDir()
		assert.Nil(t, os.WriteFile(filepath.Join(dir, ConfigurationName), []byte("color: rainbow\n"), 0600))

		_, err := Load(dir)
		assert.ErrorContains(t, err, "color")
	})
}

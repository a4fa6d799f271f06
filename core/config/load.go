package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory. A directory without a
// configuration file gets the built in defaults.
func Load(path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	out := Default(path)
	configContents, err := afero.ReadFile(out.fs(), ConfigurationName)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return out, nil
	case err != nil:
		return nil, err
	}

	// Fields missing from the file keep their defaults.
	if err := yaml.UnmarshalStrict(configContents, out); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(path, ConfigurationName), err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(path, ConfigurationName), err)
	}
	return out, nil
}

// Initialize creates the configuration directory and writes the default
// configuration to it unless one already exists.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	cfg := Default(dir)
	exists, err := afero.Exists(cfg.fs(), ConfigurationName)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Printf("%s already exists, leaving it unchanged", filepath.Join(dir, ConfigurationName))
	} else {
		logger.Printf("writing %s", filepath.Join(dir, ConfigurationName))
		if err := afero.WriteFile(cfg.fs(), ConfigurationName, defaultConfigData, 0600); err != nil {
			return nil, err
		}
	}

	return Load(dir)
}

// Package config holds the user configuration of the shell, read from a
// config.yaml file in the configuration directory.
package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/go-playground/validator/v10"
	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/syntax"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	DirName           = "psh"
)

type Configuration struct {
	configFs afero.Fs
	dir      string

	Options Options           `json:"options"`
	Aliases map[string]string `json:"aliases" validate:"dive,keys,alias_name,endkeys,shell_words"`
	Env     map[string]string `json:"env" validate:"dive,keys,var_name,endkeys"`

	HistoryFile  string `json:"history_file"`
	HistoryLimit int    `json:"history_limit" validate:"gte=-1"`
	AuditLog     string `json:"audit_log"`
	Color        string `json:"color" validate:"oneof=always auto never"`
	Path         string `json:"path" validate:"required"`
}

// Options are the shell options set at startup.
type Options struct {
	AllExport bool `json:"allexport"`
	ErrExit   bool `json:"errexit"`
	NoClobber bool `json:"noclobber"`
	NoGlob    bool `json:"noglob"`
	NoUnset   bool `json:"nounset"`
	PipeFail  bool `json:"pipefail"`
	XTrace    bool `json:"xtrace"`
	// Monitor is nil when job control follows interactivity.
	Monitor *bool `json:"monitor"`
}

// Names returns the set -o names of the enabled options.
func (o Options) Names() []string {
	var out []string
	for name, on := range map[string]bool{
		"allexport": o.AllExport,
		"errexit":   o.ErrExit,
		"noclobber": o.NoClobber,
		"noglob":    o.NoGlob,
		"nounset":   o.NoUnset,
		"pipefail":  o.PipeFail,
		"xtrace":    o.XTrace,
	} {
		if on {
			out = append(out, name)
		}
	}
	return out
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	validate.RegisterValidation("alias_name", func(fl validator.FieldLevel) bool {
		return core.ValidAliasName(fl.Field().String())
	})
	validate.RegisterValidation("var_name", func(fl validator.FieldLevel) bool {
		return syntax.IsName(fl.Field().String())
	})
	validate.RegisterValidation("shell_words", func(fl validator.FieldLevel) bool {
		_, err := shlex.Split(fl.Field().String(), true)
		return err == nil
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// Dir returns the configuration directory.
func (c *Configuration) Dir() string {
	return c.dir
}

// resolve makes a configured path absolute, relative to the configuration
// directory.
func (c *Configuration) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.dir, name)
}

// HistoryPath returns the history file of interactive shells, empty if
// history isn't saved.
func (c *Configuration) HistoryPath() string {
	return c.resolve(c.HistoryFile)
}

// OpenAuditLog opens the audit log in an append only state. It returns nil
// if no audit log is configured.
func (c *Configuration) OpenAuditLog() (afero.File, error) {
	if c.AuditLog == "" {
		return nil, nil
	}
	if filepath.IsAbs(c.AuditLog) {
		return afero.NewOsFs().OpenFile(c.AuditLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	}
	return c.fs().OpenFile(c.AuditLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadAuditLog opens the audit log for reading.
func (c *Configuration) ReadAuditLog() (afero.File, error) {
	if filepath.IsAbs(c.AuditLog) {
		return afero.NewOsFs().Open(c.AuditLog)
	}
	return c.fs().Open(c.AuditLog)
}

// Environ returns the configured variables as NAME=value pairs.
func (c *Configuration) Environ() []string {
	var out []string
	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}
	return out
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Default returns the built in configuration rooted at dir.
func Default(dir string) *Configuration {
	out := defaultConfig()
	out.dir = dir
	out.configFs = afero.NewBasePathFs(afero.NewOsFs(), dir)
	return out
}

// DefaultDir returns the configuration directory used when none is given.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, DirName)
}

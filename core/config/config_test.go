package config

import (
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v2"
)

func TestBuiltinConfig(t *testing.T) {
	rawConfig := make(map[string]interface{})
	assert.Nil(t, yaml.Unmarshal(defaultConfigData, &rawConfig))

	knownFields := make(map[string]bool)
	rt := reflect.TypeOf(Configuration{})
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		assert.NotEmpty(t, jsonTag)
		jsonField := strings.Split(jsonTag, ",")[0]
		knownFields[jsonField] = true

		if _, ok := rawConfig[jsonField]; !ok {
			assert.False(t, true, "default config missing field: %q", jsonField)
		}
	}

	for k := range rawConfig {
		_, ok := knownFields[k]
		assert.True(t, ok, "default config contains invalid field: %q", k)
	}
}

func TestDefaultConfig(t *testing.T) {
	// Will panic() on load failure because it should never happen at runtime.
	cfg := defaultConfig()
	assert.NotNil(t, cfg)
	assert.Nil(t, cfg.Validate())
	assert.Nil(t, cfg.Options.Monitor)
	assert.Empty(t, cfg.Options.Names())
}

func TestConfiguration_Validate(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*Configuration)
		wantErr string
	}{
		"default": {
			mutate: func(*Configuration) {},
		},
		"bad alias name": {
			mutate:  func(c *Configuration) { c.Aliases["a=b"] = "ls" },
			wantErr: "alias_name",
		},
		"unterminated alias value": {
			mutate:  func(c *Configuration) { c.Aliases["q"] = "echo 'oops" },
			wantErr: "shell_words",
		},
		"bad env name": {
			mutate:  func(c *Configuration) { c.Env["1X"] = "y" },
			wantErr: "var_name",
		},
		"bad color": {
			mutate:  func(c *Configuration) { c.Color = "sometimes" },
			wantErr: "color",
		},
		"bad history limit": {
			mutate:  func(c *Configuration) { c.HistoryLimit = -2 },
			wantErr: "history_limit",
		},
		"empty path": {
			mutate:  func(c *Configuration) { c.Path = "" },
			wantErr: "path",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			if cfg.Env == nil {
				cfg.Env = map[string]string{}
			}
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestOptions_Names(t *testing.T) {
	opts := Options{ErrExit: true, PipeFail: true}
	names := opts.Names()
	sort.Strings(names)
	assert.Equal(t, []string{"errexit", "pipefail"}, names)
}

func TestConfiguration_paths(t *testing.T) {
	cfg := Default("/etc/psh")
	assert.Equal(t, "/etc/psh/history", cfg.HistoryPath())

	cfg.HistoryFile = "/var/lib/psh_history"
	assert.Equal(t, "/var/lib/psh_history", cfg.HistoryPath())

	cfg.HistoryFile = ""
	assert.Equal(t, "", cfg.HistoryPath())
}

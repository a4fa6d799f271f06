package core

import (
	"fmt"
	"sort"
	"strings"
)

// Options are the shell options changed with set.
type Options struct {
	AllExport bool
	ErrExit   bool
	NoGlob    bool
	NoClobber bool
	NoUnset   bool
	XTrace    bool
	Monitor   bool
	NoExec    bool
	PipeFail  bool
}

type optionInfo struct {
	name  string
	flag  byte
	field func(o *Options) *bool
}

var optionTable = []optionInfo{
	{"allexport", 'a', func(o *Options) *bool { return &o.AllExport }},
	{"errexit", 'e', func(o *Options) *bool { return &o.ErrExit }},
	{"noglob", 'f', func(o *Options) *bool { return &o.NoGlob }},
	{"noclobber", 'C', func(o *Options) *bool { return &o.NoClobber }},
	{"nounset", 'u', func(o *Options) *bool { return &o.NoUnset }},
	{"xtrace", 'x', func(o *Options) *bool { return &o.XTrace }},
	{"monitor", 'm', func(o *Options) *bool { return &o.Monitor }},
	{"noexec", 'n', func(o *Options) *bool { return &o.NoExec }},
	{"pipefail", 0, func(o *Options) *bool { return &o.PipeFail }},
}

// OptionNames returns the long option names in alphabetical order.
func OptionNames() []string {
	var out []string
	for _, info := range optionTable {
		out = append(out, info.name)
	}
	sort.Strings(out)
	return out
}

// Set changes an option by its long name.
func (o *Options) Set(name string, on bool) error {
	for _, info := range optionTable {
		if info.name == name {
			*info.field(o) = on
			return nil
		}
	}
	return fmt.Errorf("%s: invalid option name", name)
}

// Get reads an option by its long name.
func (o *Options) Get(name string) (bool, error) {
	for _, info := range optionTable {
		if info.name == name {
			return *info.field(o), nil
		}
	}
	return false, fmt.Errorf("%s: invalid option name", name)
}

// SetFlag changes an option by its single letter flag.
func (o *Options) SetFlag(flag byte, on bool) error {
	for _, info := range optionTable {
		if info.flag != 0 && info.flag == flag {
			*info.field(o) = on
			return nil
		}
	}
	return fmt.Errorf("-%c: invalid option", flag)
}

// Flags returns the letters of the enabled options as shown by $-.
func (o *Options) Flags() string {
	var sb strings.Builder
	for _, info := range optionTable {
		if info.flag != 0 && *info.field(o) {
			sb.WriteByte(info.flag)
		}
	}
	return sb.String()
}

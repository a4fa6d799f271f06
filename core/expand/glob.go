package expand

import (
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/josephlewis42/psh/core/vos"
	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/pattern"
)

var regexpCache sync.Map

func compile(pat string, mode pattern.Mode) (*regexp.Regexp, error) {
	key := string(rune(mode)) + pat
	if re, ok := regexpCache.Load(key); ok {
		return re.(*regexp.Regexp), nil
	}
	expr, err := pattern.Regexp(pat, mode|pattern.EntireString)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	regexpCache.Store(key, re)
	return re, nil
}

// Match reports whether s matches the shell pattern pat. Malformed patterns
// match only their literal text.
func Match(pat, s string) bool {
	re, err := compile(pat, 0)
	if err != nil {
		return unescape(pat) == s
	}
	return re.MatchString(s)
}

// Trim removes the shortest ("#", "%") or longest ("##", "%%") prefix or
// suffix of val matching pat.
func Trim(val, pat, op string) string {
	re, err := compile(pat, 0)
	match := func(s string) bool {
		if err != nil {
			return unescape(pat) == s
		}
		return re.MatchString(s)
	}

	// Candidate cut points on rune boundaries.
	cuts := []int{0}
	for i := range val {
		if i > 0 {
			cuts = append(cuts, i)
		}
	}
	cuts = append(cuts, len(val))

	switch op {
	case "#":
		for _, i := range cuts {
			if match(val[:i]) {
				return val[i:]
			}
		}
	case "##":
		for j := len(cuts) - 1; j >= 0; j-- {
			if match(val[:cuts[j]]) {
				return val[cuts[j]:]
			}
		}
	case "%":
		for j := len(cuts) - 1; j >= 0; j-- {
			if match(val[cuts[j]:]) {
				return val[:cuts[j]]
			}
		}
	case "%%":
		for _, i := range cuts {
			if match(val[i:]) {
				return val[:i]
			}
		}
	}
	return val
}

// unescape removes pattern backslashes.
func unescape(pat string) string {
	if !strings.Contains(pat, `\`) {
		return pat
	}
	var sb strings.Builder
	for i := 0; i < len(pat); i++ {
		if pat[i] == '\\' && i+1 < len(pat) {
			i++
		}
		sb.WriteByte(pat[i])
	}
	return sb.String()
}

// Glob returns the sorted pathnames matching pat. Relative patterns are
// resolved against dir but returned relative. Names starting with a dot
// only match components that start with a literal dot.
func Glob(fs vos.VFS, dir, pat string) ([]string, error) {
	components := strings.Split(pat, "/")
	candidates := []string{""}
	if strings.HasPrefix(pat, "/") {
		candidates = []string{"/"}
		components = components[1:]
	}

	for i, comp := range components {
		last := i == len(components)-1

		switch {
		case comp == "" && last:
			// A trailing slash only matches directories.
			var dirs []string
			for _, c := range candidates {
				if vos.IsDir(fs, vos.Abs(dir, c)) {
					dirs = append(dirs, c+"/")
				}
			}
			candidates = dirs

		case comp == "":
			// Repeated slashes are kept as written.
			for j, c := range candidates {
				candidates[j] = c + "/"
			}

		case !pattern.HasMeta(comp, 0):
			lit := unescape(comp)
			var next []string
			for _, c := range candidates {
				p := join(c, lit)
				if !last {
					next = append(next, p)
					continue
				}
				if _, err := lstat(fs, vos.Abs(dir, p)); err == nil {
					next = append(next, p)
				}
			}
			candidates = next

		default:
			re, err := compile(comp, pattern.Filenames)
			if err != nil {
				return nil, err
			}
			hidden := strings.HasPrefix(comp, ".") || strings.HasPrefix(comp, `\.`)

			var next []string
			for _, c := range candidates {
				base := c
				if base == "" {
					base = "."
				}
				entries, err := afero.ReadDir(fs, vos.Abs(dir, base))
				if err != nil {
					continue
				}
				for _, e := range entries {
					name := e.Name()
					if strings.HasPrefix(name, ".") && !hidden {
						continue
					}
					if re.MatchString(name) {
						next = append(next, join(c, name))
					}
				}
			}
			candidates = next
		}

		if len(candidates) == 0 {
			return nil, nil
		}
	}

	sort.Strings(candidates)
	return candidates, nil
}

func join(dir, name string) string {
	switch {
	case dir == "":
		return name
	case strings.HasSuffix(dir, "/"):
		return dir + name
	default:
		return dir + "/" + name
	}
}

func lstat(fs vos.VFS, name string) (os.FileInfo, error) {
	if l, ok := fs.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(name)
		return fi, err
	}
	return fs.Stat(name)
}

// globField performs pathname expansion on a field, falling back to the
// field's text when nothing matches.
func (b *builder) globField(f field) []string {
	if b.cfg.NoGlob || b.cfg.FS == nil || !f.hasMeta() {
		return []string{f.String()}
	}
	matches, err := Glob(b.cfg.FS, b.cfg.Dir, f.pattern())
	if err != nil || len(matches) == 0 {
		return []string{f.String()}
	}
	return matches
}

package execute

import (
	"sort"
	"strings"
)

// Command is an argv vector plus the per-process environment overlay and
// working directory it runs with. It is immutable once built; every accessor
// hands out copies.
type Command struct {
	args []string
	env  map[string]string
	dir  string
}

// NewCommand copies args into a new Command.
func NewCommand(args ...string) Command {
	return Command{args: append([]string(nil), args...)}
}

// WithEnv returns a copy of c whose overlay also sets key=value.
func (c Command) WithEnv(key, value string) Command {
	env := make(map[string]string, len(c.env)+1)
	for k, v := range c.env {
		env[k] = v
	}
	env[key] = value
	return Command{args: c.args, env: env, dir: c.dir}
}

// WithDir returns a copy of c that runs in dir.
func (c Command) WithDir(dir string) Command {
	return Command{args: c.args, env: c.env, dir: dir}
}

// WithPrefix returns a copy of c with prefix inserted before its argv.
func (c Command) WithPrefix(prefix ...string) Command {
	args := make([]string, 0, len(prefix)+len(c.args))
	args = append(args, prefix...)
	args = append(args, c.args...)
	return Command{args: args, env: c.env, dir: c.dir}
}

func (c Command) Args() []string {
	return append([]string(nil), c.args...)
}

func (c Command) Dir() string {
	return c.dir
}

// Env returns the overlay as KEY=VALUE pairs sorted by key.
func (c Command) Env() []string {
	keys := make([]string, 0, len(c.env))
	for k := range c.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+c.env[k])
	}
	return env
}

func (c Command) Empty() bool {
	return len(c.args) == 0
}

func (c Command) String() string {
	return strings.Join(c.args, " ")
}

// MergeEnv overlays the KEY=VALUE pairs in overlays onto base, later entries
// winning. The result keeps base ordering for untouched keys.
func MergeEnv(base []string, overlays ...[]string) []string {
	index := make(map[string]int, len(base))
	out := make([]string, 0, len(base))
	for _, kv := range base {
		k := envKey(kv)
		if i, ok := index[k]; ok {
			out[i] = kv
			continue
		}
		index[k] = len(out)
		out = append(out, kv)
	}

	for _, overlay := range overlays {
		for _, kv := range overlay {
			k := envKey(kv)
			if i, ok := index[k]; ok {
				out[i] = kv
				continue
			}
			index[k] = len(out)
			out = append(out, kv)
		}
	}
	return out
}

func envKey(kv string) string {
	if i := strings.IndexByte(kv, '='); i >= 0 {
		return kv[:i]
	}
	return kv
}

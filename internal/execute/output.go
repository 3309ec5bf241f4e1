package execute

import (
	"context"
	"fmt"

	"toolchain-bench/internal/parser"
)

// Entry is the recorded outcome of one executed Command. Parsed holds the
// fields extracted from stdout when a parser was supplied; Profile holds the
// fields extracted from profiler output on stderr.
type Entry struct {
	Phase    string
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Parsed   parser.Fields
	Profile  parser.Fields
}

// Failed reports whether the process exited non-zero.
func (e Entry) Failed() bool {
	return e.ExitCode != 0
}

func (e Entry) clone() Entry {
	out := e
	out.Args = append([]string(nil), e.Args...)
	out.Parsed = cloneFields(e.Parsed)
	out.Profile = cloneFields(e.Profile)
	return out
}

func cloneFields(f parser.Fields) parser.Fields {
	if f == nil {
		return nil
	}
	out := make(parser.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// CommandOutput is the ordered record of every Command executed in a run.
// Entries are copied on the way in and on the way out.
type CommandOutput struct {
	entries []Entry
}

func (co *CommandOutput) Append(e Entry) {
	co.entries = append(co.entries, e.clone())
}

func (co *CommandOutput) Get(i int) (Entry, error) {
	if i < 0 || i >= len(co.entries) {
		return Entry{}, fmt.Errorf("entry %d out of range [0,%d)", i, len(co.entries))
	}
	return co.entries[i].clone(), nil
}

func (co *CommandOutput) Len() int {
	return len(co.entries)
}

func (co *CommandOutput) Entries() []Entry {
	out := make([]Entry, len(co.entries))
	for i, e := range co.entries {
		out[i] = e.clone()
	}
	return out
}

// Run executes cmd and converts the Result into an Entry, parsing stdout
// with stdoutParser when it is not nil.
func Run(ctx context.Context, ex Executor, cmd Command, stdoutParser parser.Parser) (Entry, error) {
	res, err := ex.Execute(ctx, cmd)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Args:     cmd.Args(),
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
	}
	if stdoutParser != nil {
		entry.Parsed = stdoutParser.Parse(res.Stdout)
	}
	return entry, nil
}

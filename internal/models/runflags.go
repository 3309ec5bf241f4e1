package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRunFlags reads the benchmark run flags string. It understands
// --iterations/-i and --size; everything else is passed to the benchmark
// binary untouched. Iterations default to 1.
func ParseRunFlags(flags string) (RunOptions, error) {
	opts := RunOptions{Iterations: 1}
	tokens := strings.Fields(flags)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		name, value, hasValue := strings.Cut(tok, "=")

		switch name {
		case "--iterations", "-i", "--size":
		default:
			opts.Args = append(opts.Args, tok)
			continue
		}

		if !hasValue {
			if i+1 >= len(tokens) {
				return opts, fmt.Errorf("run flag %s needs a value", name)
			}
			i++
			value = tokens[i]
		}

		if name == "--size" {
			opts.Size = value
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return opts, fmt.Errorf("run flag %s: %q is not a number", name, value)
		}
		opts.Iterations = n
	}

	return opts, nil
}

// Package machines holds the target machine models.
package machines

import "toolchain-bench/internal/models"

// Profile is a named set of target tuning flags.
type Profile struct {
	name  string
	flags models.FlagSet
}

func (p *Profile) Name() string {
	return p.name
}

func (p *Profile) Flags() models.FlagSet {
	return p.flags.Clone()
}

var profiles = []*Profile{
	{name: "generic"},
	{name: "x86_64", flags: models.NewFlagSet("-march=native -mtune=native", "")},
	{name: "aarch64", flags: models.NewFlagSet("-mcpu=native", "-L/usr/lib/aarch64-linux-gnu")},
}

// Register adds every machine profile in this package to r.
func Register(r *models.Registry) error {
	for _, p := range profiles {
		p := p
		if err := r.RegisterMachine(p.name, func(models.Env) (models.Machine, error) {
			return &Profile{name: p.name, flags: p.flags.Clone()}, nil
		}); err != nil {
			return err
		}
	}
	return nil
}

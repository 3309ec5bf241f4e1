package controller

import (
	"fmt"
	"strings"
)

// Phase is a step of the pipeline. Phases run strictly in declaration order.
type Phase int

const (
	PhasePrepareBuild Phase = iota
	PhaseBuild
	PhasePrepareRun
	PhaseRun
	PhaseCollect
)

var phaseNames = [...]string{
	PhasePrepareBuild: "PREPARE_BUILD",
	PhaseBuild:        "BUILD",
	PhasePrepareRun:   "PREPARE_RUN",
	PhaseRun:          "RUN",
	PhaseCollect:      "COLLECT",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase accepts the phase name in any case.
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if strings.EqualFold(s, name) {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// Policy decides what a non-zero exit status in a phase does to the run.
type Policy int

const (
	// PolicyContinue logs and records the failure and keeps going.
	PolicyContinue Policy = iota
	// PolicyAbort stops the pipeline with a *PhaseError.
	PolicyAbort
)

func (p Policy) String() string {
	if p == PolicyAbort {
		return "abort"
	}
	return "continue"
}

type Policies map[Phase]Policy

// DefaultPolicies aborts on a failed build and continues everywhere else,
// so a crashing run iteration still leaves the other iterations' results.
func DefaultPolicies() Policies {
	return Policies{
		PhasePrepareBuild: PolicyContinue,
		PhaseBuild:        PolicyAbort,
		PhasePrepareRun:   PolicyContinue,
		PhaseRun:          PolicyContinue,
	}
}

// ParsePolicies overlays phase -> "continue"|"abort" settings on the
// defaults.
func ParsePolicies(raw map[string]string) (Policies, error) {
	out := DefaultPolicies()
	for name, value := range raw {
		phase, err := ParsePhase(name)
		if err != nil {
			return nil, err
		}
		if phase == PhaseCollect {
			return nil, fmt.Errorf("phase %s has no failure policy", phase)
		}
		switch strings.ToLower(value) {
		case "continue":
			out[phase] = PolicyContinue
		case "abort":
			out[phase] = PolicyAbort
		default:
			return nil, fmt.Errorf("unknown policy %q for phase %s", value, phase)
		}
	}
	return out, nil
}

func (p Policies) For(phase Phase) Policy {
	if policy, ok := p[phase]; ok {
		return policy
	}
	return DefaultPolicies()[phase]
}

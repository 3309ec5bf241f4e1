package models

import (
	"strings"
)

// FlagSet is a pair of ordered build and link flag sequences.
type FlagSet struct {
	Build []string `yaml:"build"`
	Link  []string `yaml:"link"`
}

// NewFlagSet splits whitespace separated build and link flag strings.
func NewFlagSet(build, link string) FlagSet {
	return FlagSet{Build: strings.Fields(build), Link: strings.Fields(link)}
}

// Combine concatenates sets in argument order. Tokens are never removed or
// deduplicated, so a later set may repeat or shadow an earlier token.
func Combine(sets ...FlagSet) FlagSet {
	var out FlagSet
	for _, s := range sets {
		out.Build = append(out.Build, s.Build...)
		out.Link = append(out.Link, s.Link...)
	}
	return out
}

func (f FlagSet) BuildString() string {
	return strings.Join(f.Build, " ")
}

func (f FlagSet) LinkString() string {
	return strings.Join(f.Link, " ")
}

// Clone returns a deep copy of f.
func (f FlagSet) Clone() FlagSet {
	return FlagSet{
		Build: append([]string(nil), f.Build...),
		Link:  append([]string(nil), f.Link...),
	}
}

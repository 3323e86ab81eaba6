// Package config holds relkit's configuration: release policies, lint
// checks, coverage thresholds, and terminal io.
package config

import (
	"fmt"

	"github.com/imdario/mergo"
)

type Config struct {
	Debug          bool       `json:"debug,omitempty" toml:"debug"`
	Dryrun         bool       `json:"dryrun,omitempty" toml:"dryrun"`
	Quiet          bool       `json:"quiet,omitempty" toml:"quiet"`
	NoEdit         bool       `json:"no_edit,omitempty" toml:"no_edit"`
	All            bool       `json:"all,omitempty" toml:"all"`
	Major          bool       `json:"-" toml:"-"`
	Minor          bool       `json:"-" toml:"-"`
	Patch          bool       `json:"-" toml:"-"`
	InCI           bool       `json:"ci,omitempty" toml:"ci"`
	BranchesSet    bool       `json:"-" toml:"-"`
	IgnorePolicies bool       `json:"-" toml:"-"`
	Name           string     `json:"name,omitempty" toml:"name"`
	Scope          string     `json:"scope,omitempty" toml:"scope"`
	TagTemplate    string     `json:"tag_template,omitempty" toml:"tag_template"`
	LogTemplate    string     `json:"shortlog_template,omitempty" toml:"shortlog_template"`
	ChangelogFile  string     `json:"changelog,omitempty" toml:"changelog"`
	Branches       []string   `json:"branches,omitempty" toml:"branches"`
	ReleaseScopes  []string   `json:"release_scopes,omitempty" toml:"release_scopes"`
	AllowedScopes  []string   `json:"allowed_scopes,omitempty" toml:"allowed_scopes"`
	AllowedTypes   []string   `json:"allowed_types,omitempty" toml:"allowed_types"`
	Policies       []string   `json:"policies,omitempty" toml:"policies"`
	CustomPolicies []Policy   `json:"custom_policies,omitempty" toml:"custom_policies"`
	Checks         Checks     `json:"checks,omitempty" toml:"checks"`
	Coverage       Coverage   `json:"coverage,omitempty" toml:"coverage"`
	GitHub         GitHub     `json:"github,omitempty" toml:"github"`
	Term           TerminalIO `json:"-" toml:"-"`
}

// Checks are the commit message lint rules applied on top of policy
// matching. For the lengths, zero means unset (use the default) and
// negative disables the check.
type Checks struct {
	SubjectMaxLength    int  `json:"subject_max_length,omitempty" toml:"subject_max_length"`
	AllowTrailingPeriod bool `json:"allow_trailing_period,omitempty" toml:"allow_trailing_period"`
	RequireType         bool `json:"require_type,omitempty" toml:"require_type"`
	BodyMaxLineWidth    int  `json:"body_max_line_width,omitempty" toml:"body_max_line_width"`
}

// Coverage configures the coverage threshold gate. Positive thresholds are
// the minimum percentage of statements covered, negative thresholds the
// maximum number of uncovered statements allowed.
type Coverage struct {
	Profile  string             `json:"profile,omitempty" toml:"profile"`
	Global   float64            `json:"global,omitempty" toml:"global"`
	Packages map[string]float64 `json:"packages,omitempty" toml:"packages"`
}

// GitHub configures release publishing. Owner/Repo default from the origin
// remote URL when unset.
type GitHub struct {
	Release bool   `json:"release,omitempty" toml:"release"`
	Owner   string `json:"owner,omitempty" toml:"owner"`
	Repo    string `json:"repo,omitempty" toml:"repo"`
	APIBase string `json:"api_base,omitempty" toml:"api_base"`
}

func New(overrides *Config) Config {
	return NewWithTerminalIO(overrides, nil)
}

func NewWithTerminalIO(overrides *Config, termio *TerminalIO) Config {
	cfg := GetDefault()
	if termio == nil {
		termio = &DefaultTermIO
	}
	cfg.Term = *termio

	if overrides != nil {
		if err := mergo.Merge(&cfg, overrides, mergo.WithOverride); err != nil {
			panic(err)
		}
	}
	return cfg
}

func (c Config) Validate() error {
	bumps := 0
	for _, b := range []bool{c.Major, c.Minor, c.Patch} {
		if b {
			bumps++
		}
	}
	if bumps > 1 {
		return fmt.Errorf("config: only one of major, minor, patch can be set")
	}
	if c.All && c.Scope != "" {
		return fmt.Errorf("config: all and scope are mutually exclusive")
	}
	for _, name := range c.Policies {
		if c.lookupPolicy(name) == nil {
			return fmt.Errorf("config: unknown policy %q", name)
		}
	}
	for _, pol := range c.GetPolicies() {
		if err := pol.Validate(); err != nil {
			return err
		}
	}
	if c.Coverage.Global > 100 {
		return fmt.Errorf("config: coverage threshold %v exceeds 100", c.Coverage.Global)
	}
	for pkg, v := range c.Coverage.Packages {
		if v > 100 {
			return fmt.Errorf("config: coverage threshold %v for %q exceeds 100", v, pkg)
		}
	}
	return nil
}

func (c Config) Printf(msg string, args ...interface{}) {
	if c.Quiet {
		return
	}
	fmt.Fprintf(c.Term.Stdout, msg+"\n", args...)
}

func (c Config) Errorf(msg string, args ...interface{}) {
	fmt.Fprintf(c.Term.Stderr, msg+"\n", args...)
}

func (c Config) Warning(msg string, args ...interface{}) {
	if c.Quiet {
		return
	}
	fmt.Fprintf(c.Term.Stderr, "warning: "+msg+"\n", args...)
}

func (c Config) Debugf(msg string, args ...interface{}) {
	if !c.Debug {
		return
	}
	c.Printf(msg, args...)
}

// GetPolicies resolves the configured policy names. Custom policies shadow
// builtins with the same name.
func (c Config) GetPolicies() []*Policy {
	var pols []*Policy
	for _, name := range c.Policies {
		if pol := c.lookupPolicy(name); pol != nil {
			pols = append(pols, pol)
		}
	}
	return pols
}

func (c Config) lookupPolicy(name string) *Policy {
	for _, pol := range c.CustomPolicies {
		if pol.Name == name {
			p := pol
			return &p
		}
	}
	return getBuiltinPolicy(name)
}

// SubjectMaxLength resolves the check setting against its default.
func (c Config) SubjectMaxLength() int {
	n := c.Checks.SubjectMaxLength
	if n == 0 {
		return defaultSubjectMaxLength
	}
	if n < 0 {
		return 0
	}
	return n
}

func (c Config) BodyMaxLineWidth() int {
	n := c.Checks.BodyMaxLineWidth
	if n < 0 {
		return 0
	}
	return n
}

func oneOf(s string, l []string) bool {
	for _, cand := range l {
		if s == cand {
			return true
		}
	}
	return false
}

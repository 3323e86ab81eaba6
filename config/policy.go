package config

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Policy describes how commit subjects are matched and mapped to release
// types. Policies are tried in order; the first whose subject regexp
// matches a commit decides it.
type Policy struct {
	Name                  string            `json:"name" toml:"name"`
	SubjectRE             string            `json:"subject_regex,omitempty" toml:"subject_regex"`
	BodyAnnotationStartRE string            `json:"body_annotation_start_regex,omitempty" toml:"body_annotation_start_regex"`
	BreakingChangeTypes   []string          `json:"breaking_change_annotations,omitempty" toml:"breaking_change_annotations"`
	CommitTypes           map[string]string `json:"commit_types,omitempty" toml:"commit_types"`
	FallbackReleaseType   string            `json:"fallback_type,omitempty" toml:"fallback_type"`
	// Conventional marks the subject grammar as Conventional Commits:
	// a trailing "!" on the type/scope and BREAKING CHANGE footers both
	// upgrade the release type to major.
	Conventional bool `json:"conventional,omitempty" toml:"conventional"`
	subjectRE    *regexp.Regexp
	bodyRE       *regexp.Regexp
}

func (p *Policy) GetSubjectRE() *regexp.Regexp {
	if p.SubjectRE == "" {
		return nil
	}
	if p.subjectRE == nil {
		p.subjectRE = regexp.MustCompile(p.SubjectRE)
	}
	return p.subjectRE
}

func (p *Policy) GetBodyAnnotationRE() *regexp.Regexp {
	if p.BodyAnnotationStartRE == "" {
		return nil
	}
	if p.bodyRE == nil {
		p.bodyRE = regexp.MustCompile(p.BodyAnnotationStartRE)
	}
	return p.bodyRE
}

func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("config: policy requires a name")
	}
	if p.SubjectRE != "" {
		if _, err := regexp.Compile(p.SubjectRE); err != nil {
			return fmt.Errorf("config: policy %q subject regexp: %w", p.Name, err)
		}
	}
	if p.BodyAnnotationStartRE != "" {
		if _, err := regexp.Compile(p.BodyAnnotationStartRE); err != nil {
			return fmt.Errorf("config: policy %q body annotation regexp: %w", p.Name, err)
		}
	}
	for typ, rt := range p.CommitTypes {
		if !oneOf(rt, releaseTypeNames) {
			return fmt.Errorf("config: policy %q maps %q to unknown release type %q", p.Name, typ, rt)
		}
	}
	if p.FallbackReleaseType != "" && !oneOf(p.FallbackReleaseType, releaseTypeNames) {
		return fmt.Errorf("config: policy %q has unknown fallback release type %q", p.Name, p.FallbackReleaseType)
	}
	return nil
}

func (p *Policy) TextSummary(w io.Writer) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(fmt.Sprintf("Name: %s\n", p.Name))

	if p.SubjectRE != "" {
		bw.WriteString(fmt.Sprintf("Subject regexp: %s\n", p.SubjectRE))
	}
	if p.BodyAnnotationStartRE != "" {
		bw.WriteString(fmt.Sprintf("Body annotation regexp: %s\n", p.BodyAnnotationStartRE))
	}

	if len(p.BreakingChangeTypes) > 0 {
		bw.WriteString(fmt.Sprintf("Breaking change annotation(s): %s\n", strings.Join(p.BreakingChangeTypes, ", ")))
	}

	if len(p.CommitTypes) > 0 {
		bw.WriteString("Commit types:\n")
		for k, v := range p.CommitTypes {
			bw.WriteString(fmt.Sprintf("  %16s: %16s\n", k, v))
		}
	}

	if p.FallbackReleaseType != "" {
		bw.WriteString(fmt.Sprintf("Fallback release type: %s\n", p.FallbackReleaseType))
	}

	return bw.Flush()
}

var releaseTypeNames = []string{"SKIP", "PATCH", "MINOR", "MAJOR"}

var builtinPolicies = []Policy{
	{
		Name:                  "conventional-lax",
		SubjectRE:             `^(?P<type>[A-Za-z0-9]+)(?P<scope>\([^\)]+\))?(?P<bang>!)?:\s+(?P<description>.+)$`,
		BodyAnnotationStartRE: `^(?P<name>[A-Z -]+): `,
		BreakingChangeTypes:   []string{"BREAKING CHANGE", "BREAKING-CHANGE"},
		Conventional:          true,
		CommitTypes: map[string]string{
			"feat":        "MINOR",
			"fix":         "PATCH",
			"revert":      "PATCH",
			"cont":        "PATCH",
			"perf":        "PATCH",
			"improvement": "PATCH",
			"refactor":    "PATCH",
			"style":       "PATCH",
			"test":        "SKIP",
			"chore":       "SKIP",
			"docs":        "SKIP",
		},
	},
	{
		Name:                "lax",
		SubjectRE:           `^(?P<scope>[A-Za-z0-9_-]+): `,
		FallbackReleaseType: "PATCH",
	},
}

func getBuiltinPolicy(name string) *Policy {
	for _, pol := range builtinPolicies {
		if name == pol.Name {
			p := pol
			return &p
		}
	}
	return nil
}

package commit

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/relkit/relkit/model"
)

// ErrEmptyMessage is returned when a message contains no content after
// comment lines are stripped.
var ErrEmptyMessage = errors.New("commit: empty message")

var (
	headerRE = regexp.MustCompile(`^(?P<type>[A-Za-z0-9]+)(?:\((?P<scope>[^\)]+)\))?(?P<bang>!)?:\s+(?P<description>.+)$`)
	footerRE = regexp.MustCompile(`^(?P<token>BREAKING CHANGE|[A-Za-z0-9-]+)(?P<sep>: | #)(?P<value>.*)$`)
)

// Footer is a single commit message footer, such as "Reviewed-by: sam"
// or "Fixes #33". Ref is true for the "token #value" form.
type Footer struct {
	Token string `json:"token"`
	Value string `json:"value"`
	Ref   bool   `json:"ref,omitempty"`
}

func (f Footer) String() string {
	if f.Ref {
		return fmt.Sprintf("%s #%s", f.Token, f.Value)
	}
	return fmt.Sprintf("%s: %s", f.Token, f.Value)
}

// BreakingChange reports whether the footer declares a breaking
// change.
func (f Footer) BreakingChange() bool {
	return f.Token == "BREAKING CHANGE" || f.Token == "BREAKING-CHANGE"
}

// Message is a commit message structured according to the conventional
// commit grammar: a typed subject, an optional body, and optional
// footers. Subjects that don't follow the grammar still produce a
// Message, with Type left empty and the whole subject as the
// description.
type Message struct {
	Type        string   `json:"type,omitempty"`
	Scope       string   `json:"scope,omitempty"`
	Description string   `json:"description"`
	Breaking    bool     `json:"breaking,omitempty"`
	Body        string   `json:"body,omitempty"`
	Footers     []Footer `json:"footers,omitempty"`
}

// BreakingDescription returns the text describing a breaking change:
// the value of the first breaking change footer, or the subject
// description when the change was declared with "!" alone.
func (m *Message) BreakingDescription() string {
	for _, f := range m.Footers {
		if f.BreakingChange() {
			return f.Value
		}
	}
	if m.Breaking {
		return m.Description
	}
	return ""
}

// ParseMessage parses a raw commit message, such as the contents of
// COMMIT_EDITMSG. Comment lines and anything below a scissors line are
// ignored. The subject must be separated from the body by a blank
// line.
func ParseMessage(raw string) (*Message, error) {
	subject, body, err := SplitRaw(raw)
	if err != nil {
		return nil, err
	}
	m := parseHeader(subject)
	m.Body, m.Footers = splitFooters(body)
	m.setBreaking()
	return m, nil
}

// ParseCommit structures a commit that was already read from the
// repository, where the subject and body are separate. It never fails:
// an unconventional subject becomes the description.
func ParseCommit(c *model.Commit) *Message {
	m := parseHeader(c.Subject)
	m.Body, m.Footers = splitFooters(c.Body)
	m.setBreaking()
	return m
}

func (m *Message) setBreaking() {
	for _, f := range m.Footers {
		if f.BreakingChange() {
			m.Breaking = true
		}
	}
}

func parseHeader(subject string) *Message {
	m := &Message{Description: strings.TrimSpace(subject)}
	match := headerRE.FindStringSubmatch(subject)
	if match == nil {
		return m
	}
	m.Type = match[1]
	m.Scope = match[2]
	m.Breaking = match[3] == "!"
	m.Description = match[4]
	return m
}

// SplitRaw splits a raw message into its subject and body. Comment
// lines are dropped, and a scissors line ends the message. It's an
// error for the second line to be anything but blank.
func SplitRaw(raw string) (string, string, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			if strings.Contains(trimmed, " >8 ") {
				break
			}
			continue
		}
		lines = append(lines, line)
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return "", "", ErrEmptyMessage
	}
	subject := lines[0]
	if len(lines) == 1 {
		return subject, "", nil
	}
	if strings.TrimSpace(lines[1]) != "" {
		return "", "", fmt.Errorf("commit: expected blank line after subject, got %q", lines[1])
	}
	return subject, strings.Join(lines[2:], "\n"), nil
}

// splitFooters separates trailing footer paragraphs from the body.
// Paragraphs are consumed from the end for as long as they parse as
// footer blocks.
func splitFooters(body string) (string, []Footer) {
	body = strings.TrimRight(body, " \t\n")
	if body == "" {
		return "", nil
	}
	lines := strings.Split(body, "\n")

	type para struct{ start, end int }
	var paras []para
	inPara := false
	for i, line := range lines {
		blank := strings.TrimSpace(line) == ""
		if blank {
			inPara = false
			continue
		}
		if !inPara {
			paras = append(paras, para{start: i, end: i + 1})
			inPara = true
		} else {
			paras[len(paras)-1].end = i + 1
		}
	}

	cut := len(paras)
	var footers []Footer
	for i := len(paras) - 1; i >= 0; i-- {
		block, ok := parseFooterBlock(lines[paras[i].start:paras[i].end])
		if !ok {
			break
		}
		footers = append(block, footers...)
		cut = i
	}
	if cut == len(paras) {
		return body, nil
	}
	if cut == 0 {
		return "", footers
	}
	return strings.Join(lines[:paras[cut-1].end], "\n"), footers
}

func parseFooterBlock(lines []string) ([]Footer, bool) {
	var footers []Footer
	for i, line := range lines {
		match := footerRE.FindStringSubmatch(line)
		if match == nil {
			if i == 0 {
				return nil, false
			}
			footers[len(footers)-1].Value += "\n" + line
			continue
		}
		f := Footer{Token: match[1], Value: match[3], Ref: match[2] == " #"}
		footers = append(footers, f)
	}
	return footers, true
}

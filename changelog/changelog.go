// Package changelog renders release notes from analyzed commits and
// maintains the changelog file. Existing entries are never rewritten,
// new releases are prepended below the header.
package changelog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/relkit/relkit/commit"
	"github.com/relkit/relkit/config"
)

const defaultHeader = "# Changelog\n"

var sectionTitles = map[string]string{
	"feat":   "Features",
	"fix":    "Bug Fixes",
	"perf":   "Performance Improvements",
	"revert": "Reverts",
}

var sectionOrder = []string{"feat", "fix", "perf", "revert", otherSection}

const otherSection = "other"

type Changelog struct {
	cfg config.Config
}

func New(cfg config.Config) *Changelog {
	return &Changelog{cfg: cfg}
}

// Render writes one release entry: a version heading, the commits
// grouped into sections, and any breaking changes. Commits whose
// release type is SKIP are left out.
func (c *Changelog) Render(w io.Writer, ver *commit.Version, tag string) error {
	date := ver.Date
	if date.IsZero() {
		date = time.Now()
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "## %s (%s)\n", tag, date.Format("2006-01-02"))

	sections := make(map[string]commit.AnalyzedCommits)
	for _, ac := range ver.AllCommits {
		if ac.ReleaseType == commit.ReleaseSkip && !ac.Breaking() {
			continue
		}
		name := ac.CommitType
		if _, ok := sectionTitles[name]; !ok {
			name = otherSection
		}
		sections[name] = append(sections[name], ac)
	}

	for _, name := range sectionOrder {
		acs := sections[name]
		if len(acs) == 0 {
			continue
		}
		title := sectionTitles[name]
		if title == "" {
			title = "Other Changes"
		}
		fmt.Fprintf(bw, "\n### %s\n\n", title)
		for _, ac := range acs {
			writeItem(bw, ac)
		}
	}

	if breaking := ver.AllCommits.BreakingChanges(); len(breaking) > 0 {
		bw.WriteString("\n### BREAKING CHANGES\n\n")
		for _, ac := range breaking {
			writeBreakingItem(bw, ac)
		}
	}
	return bw.Flush()
}

// RenderString renders one release entry to a string.
func (c *Changelog) RenderString(ver *commit.Version, tag string) (string, error) {
	b := &bytes.Buffer{}
	if err := c.Render(b, ver, tag); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeItem(bw *bufio.Writer, ac *commit.AnalyzedCommit) {
	bw.WriteString("* ")
	if ac.Scope != "" {
		fmt.Fprintf(bw, "**%s:** ", ac.Scope)
	}
	bw.WriteString(ac.Description())
	fmt.Fprintf(bw, " (%s)\n", ac.ShortID())
}

func writeBreakingItem(bw *bufio.Writer, ac *commit.AnalyzedCommit) {
	desc := ""
	if ac.Message != nil {
		desc = ac.Message.BreakingDescription()
	}
	if desc == "" {
		desc = ac.Description()
	}

	bw.WriteString("* ")
	if ac.Scope != "" {
		fmt.Fprintf(bw, "**%s:** ", ac.Scope)
	}
	lines := strings.Split(desc, "\n")
	bw.WriteString(lines[0])
	bw.WriteString("\n")
	for _, line := range lines[1:] {
		bw.WriteString("  ")
		bw.WriteString(line)
		bw.WriteString("\n")
	}
}

// Prepend inserts a rendered entry at the top of the changelog file,
// below the header. The file is created when it doesn't exist.
func (c *Changelog) Prepend(path, entry string) error {
	entry = strings.TrimRight(entry, "\n") + "\n"

	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		c.cfg.Debugf("changelog: creating %s", path)
		content := defaultHeader + "\n" + entry
		return os.WriteFile(path, []byte(content), 0644)
	}

	existing := string(b)
	idx := entryIndex(existing)
	var sb strings.Builder
	if idx < 0 {
		head := strings.TrimRight(existing, "\n")
		if head != "" {
			sb.WriteString(head)
			sb.WriteString("\n\n")
		}
		sb.WriteString(entry)
	} else {
		sb.WriteString(existing[:idx])
		sb.WriteString(entry)
		sb.WriteString("\n")
		sb.WriteString(existing[idx:])
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// entryIndex returns the offset of the first release heading, or -1
// when the file has none.
func entryIndex(s string) int {
	if strings.HasPrefix(s, "## ") {
		return 0
	}
	if i := strings.Index(s, "\n## "); i >= 0 {
		return i + 1
	}
	return -1
}

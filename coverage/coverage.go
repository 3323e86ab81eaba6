// Package coverage reads Go cover profiles and enforces coverage
// thresholds. It doesn't run tests, it only reads profiles that a test
// run already produced.
package coverage

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/tools/cover"

	"github.com/relkit/relkit/config"
)

// Stat is a statement count with the number of covered statements.
type Stat struct {
	Statements int64 `json:"statements"`
	Covered    int64 `json:"covered"`
}

func (s Stat) Percent() float64 {
	if s.Statements == 0 {
		return 100.0
	}
	return 100.0 * float64(s.Covered) / float64(s.Statements)
}

func (s Stat) Uncovered() int64 { return s.Statements - s.Covered }

// Report is an aggregated cover profile, grouped by package.
type Report struct {
	Mode     string          `json:"mode"`
	Total    Stat            `json:"total"`
	Packages map[string]Stat `json:"packages"`
}

// Parse reads a cover profile file as written by go test
// -coverprofile.
func Parse(profilePath string) (*Report, error) {
	profiles, err := cover.ParseProfiles(profilePath)
	if err != nil {
		return nil, fmt.Errorf("coverage: %w", err)
	}
	return build(profiles), nil
}

func build(profiles []*cover.Profile) *Report {
	rep := &Report{Packages: make(map[string]Stat)}
	for _, p := range profiles {
		if rep.Mode == "" {
			rep.Mode = p.Mode
		}
		var st Stat
		for _, b := range p.Blocks {
			st.Statements += int64(b.NumStmt)
			if b.Count > 0 {
				st.Covered += int64(b.NumStmt)
			}
		}

		pkg := path.Dir(p.FileName)
		cur := rep.Packages[pkg]
		cur.Statements += st.Statements
		cur.Covered += st.Covered
		rep.Packages[pkg] = cur

		rep.Total.Statements += st.Statements
		rep.Total.Covered += st.Covered
	}
	return rep
}

func (r *Report) sortedPackages() []string {
	pkgs := make([]string, 0, len(r.Packages))
	for pkg := range r.Packages {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}

func (r *Report) TextSummary(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "total: %.1f%% (%d/%d statements)\n", r.Total.Percent(), r.Total.Covered, r.Total.Statements)
	if len(r.Packages) > 0 {
		bw.WriteString("\n")
	}
	for _, pkg := range r.sortedPackages() {
		st := r.Packages[pkg]
		fmt.Fprintf(bw, "  %-50s %5.1f%% (%d/%d)\n", pkg, st.Percent(), st.Covered, st.Statements)
	}
	return bw.Flush()
}

// ThresholdError is one failed threshold. A negative threshold caps
// the number of uncovered statements instead of requiring a
// percentage.
type ThresholdError struct {
	Package   string
	Threshold float64
	Stat      Stat
}

func (e ThresholdError) Error() string {
	name := e.Package
	if name == "" {
		name = "total"
	}
	if e.Threshold < 0 {
		return fmt.Sprintf("coverage: %s has %d uncovered statements, max %d", name, e.Stat.Uncovered(), int64(-e.Threshold))
	}
	return fmt.Sprintf("coverage: %s is %.1f%%, below threshold %.1f%%", name, e.Stat.Percent(), e.Threshold)
}

// Checker applies the configured thresholds to a report.
type Checker struct {
	cfg config.Config
}

func New(cfg config.Config) *Checker {
	return &Checker{cfg: cfg}
}

// Check compares the report against the global threshold and the
// per-package thresholds. Every package is checked against its most
// specific configured prefix. All failures are reported, not just the
// first.
func (c *Checker) Check(rep *Report) error {
	var merr *multierror.Error
	if thr := c.cfg.Coverage.Global; thr != 0 {
		if err := checkStat("", rep.Total, thr); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	for _, pkg := range rep.sortedPackages() {
		thr, ok := c.lookupThreshold(pkg)
		if !ok {
			continue
		}
		if err := checkStat(pkg, rep.Packages[pkg], thr); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// CheckFile parses a profile and applies the thresholds. The report is
// returned even when thresholds fail so callers can print a summary.
func (c *Checker) CheckFile(profilePath string) (*Report, error) {
	rep, err := Parse(profilePath)
	if err != nil {
		return nil, err
	}
	return rep, c.Check(rep)
}

func (c *Checker) lookupThreshold(pkg string) (float64, bool) {
	var best string
	var res float64
	found := false
	for prefix, thr := range c.cfg.Coverage.Packages {
		if pkg != prefix && !strings.HasPrefix(pkg, prefix+"/") {
			continue
		}
		if !found || len(prefix) > len(best) {
			best, res, found = prefix, thr, true
		}
	}
	return res, found
}

func checkStat(name string, st Stat, threshold float64) error {
	if threshold < 0 {
		if st.Uncovered() > int64(-threshold) {
			return ThresholdError{Package: name, Threshold: threshold, Stat: st}
		}
		return nil
	}
	if st.Percent()+1e-9 < threshold {
		return ThresholdError{Package: name, Threshold: threshold, Stat: st}
	}
	return nil
}

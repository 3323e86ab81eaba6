package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/relkit/relkit/commit"
)

const statTopN = 10

type Stats struct {
	Commits int64
	Counts  map[string][]*statCount
}

func (s *Stats) Add(bucket, name string, n int64) {
	counts := s.Counts[bucket]
	count, found := s.findCount(name, counts)
	if !found {
		counts = append(counts, count)
	}
	count.Add(n)

	s.Counts[bucket] = counts
}

func (s *Stats) findCount(name string, counts []*statCount) (*statCount, bool) {
	for _, c := range counts {
		if c.label == name {
			return c, true
		}
	}
	return &statCount{label: name}, false
}

func (s *Stats) sortedBuckets() []string {
	buckets := make([]string, len(s.Counts))
	i := 0
	for name := range s.Counts {
		buckets[i] = name
		i++
	}
	sort.Strings(buckets)
	return buckets
}

type statCount struct {
	label string
	n     int64
}

func (c *statCount) Add(n int64) {
	c.n += n
}

// TextSummary writes each counter sorted by count. Only the top ten rows
// per counter are written unless all is set.
func (s *Stats) TextSummary(w io.Writer, all bool) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d commits\n\n", s.Commits)

	buckets := s.sortedBuckets()
	for _, name := range buckets {
		counts := s.Counts[name]
		sort.SliceStable(counts, func(i, j int) bool {
			if counts[i].n != counts[j].n {
				return counts[i].n > counts[j].n
			}
			return counts[i].label < counts[j].label
		})
		if !all && len(counts) > statTopN {
			counts = counts[:statTopN]
		}
		fmt.Fprintf(bw, "%s:\n", toTitle(name))
		for _, count := range counts {
			label := count.label
			if label == "" {
				label = "n/a"
			}
			fmt.Fprintf(bw, "  %20s\t\t%d\n", label, count.n)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// Stats counts commits on the main branch by scope, commit type, and
// release type. Commits that match no policy count toward the fallback
// instead of failing the read.
func (r *Runner) Stats(ctx context.Context) (*Stats, error) {
	if err := r.Check(ctx, ""); err != nil && !isWrongBranchError(err) {
		return nil, err
	}

	commits, err := r.vcs.ReadCommits(ctx, r.mainBranch)
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		Commits: int64(len(commits)),
		Counts:  make(map[string][]*statCount),
	}

	lenientCfg := r.cfg
	lenientCfg.IgnorePolicies = true
	analyzer := commit.NewAnalyzer(lenientCfg, r.vcs, r.tag)
	policies := lenientCfg.GetPolicies()
	for _, c := range commits {
		ac, err := analyzer.Match(c, policies)
		if err != nil {
			return nil, err
		}
		stats.Add("scope", ac.Scope, 1)
		stats.Add("commit_type", ac.CommitType, 1)
		stats.Add("type", ac.ReleaseType.String(), 1)
	}
	return stats, nil
}

var nonAlphaRE = regexp.MustCompile(`[^A-Za-z]`)

func toTitle(s string) string {
	s = nonAlphaRE.ReplaceAllLiteralString(s, " ")
	return cases.Title(language.English).String(s)
}

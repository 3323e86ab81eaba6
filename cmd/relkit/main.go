package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ghodss/yaml"
	"github.com/imdario/mergo"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/relkit/relkit/commit"
	"github.com/relkit/relkit/config"
	"github.com/relkit/relkit/coverage"
	"github.com/relkit/relkit/github"
	"github.com/relkit/relkit/hooks"
	"github.com/relkit/relkit/runner"
	"github.com/relkit/relkit/vcs/gitcli"
)

// Version is overridden by go build -X.
var Version string

const defaultCoverProfile = "coverage.out"

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(rawArgs []string) error {
	cfg := config.New(nil)

	var help bool
	var version bool
	var cfgFile string
	var noPolicy bool
	var checkCommits []string
	var checkCommitsFromGit bool
	var commitMsgFile string
	var printChangelog bool
	var installHooks bool
	var uninstallHooks bool
	var force bool
	var checkCoverage bool
	var readStats bool
	var readAllStats bool
	var debugConfig string
	var printConfig bool
	var printLatest bool
	flags := pflag.NewFlagSet("relkit", pflag.ExitOnError)
	flags.BoolVarP(&help, "help", "h", false, "show help")
	flags.BoolVarP(&version, "version", "V", false, "print version and exit")
	flags.BoolVarP(&cfg.Dryrun, "dry-run", "n", false, "Don't do destructive operations")
	flags.BoolVarP(&cfg.All, "all", "a", false, "operate on all scopes")
	flags.BoolVar(&cfg.Major, "major", false, "bump major version")
	flags.BoolVar(&cfg.Minor, "minor", false, "bump minor version")
	flags.BoolVar(&cfg.Patch, "patch", false, "bump patch version")
	flags.BoolVar(&cfg.InCI, "ci", false, "Run in CI mode")
	flags.BoolVarP(&readStats, "stats", "S", false, "print repository stats (with top tens)")
	flags.BoolVarP(&readAllStats, "stats-all", "A", false, "print all repository stats")
	flags.BoolVarP(&cfg.NoEdit, "no-edit", "E", false, "Don't edit release tag shortlogs")
	flags.StringVarP(&cfg.Scope, "scope", "s", "", "Operate on the `name`d scope")
	flags.StringVar(&cfg.TagTemplate, "template", "", "go text/template for tag `format`")
	flags.StringVar(&cfg.LogTemplate, "shortlog-template", "", "custom shortlog go text/template `format`")
	flags.StringVar(&cfg.ChangelogFile, "changelog-file", "", "maintain a changelog at `path`")
	flags.StringArrayVarP(&cfg.Branches, "branch", "b", []string{"main", "master"}, "set release branch to `name`")
	flags.StringArrayVar(&cfg.ReleaseScopes, "release-scope", nil, "declare release scopes' `name`s")
	flags.StringArrayVar(&cfg.AllowedScopes, "allowed-scope", nil, "declare allowed scopes' `name`s")
	flags.StringArrayVar(&cfg.AllowedTypes, "allowed-type", nil, "declare allowed commit `type`s")
	flags.StringArrayVar(&cfg.Policies, "policy", []string{"conventional-lax", "lax"}, "declare commit policies by `name`")
	flags.BoolVarP(&noPolicy, "no-policy", "P", false, "disable all commit policies")
	flags.StringArrayVar(&checkCommits, "check-commit", nil, "only validate provided commit `body`")
	flags.BoolVarP(&checkCommitsFromGit, "check", "C", false, "only validate commits since last release")
	flags.StringVar(&commitMsgFile, "commit-msg-file", "", "only validate the commit message in `file`")
	flags.BoolVar(&printChangelog, "changelog", false, "print the pending changelog entry and exit")
	flags.BoolVar(&installHooks, "install-hooks", false, "install git hooks and exit")
	flags.BoolVar(&uninstallHooks, "uninstall-hooks", false, "remove installed git hooks and exit")
	flags.BoolVar(&force, "force", false, "overwrite hooks relkit didn't write")
	flags.BoolVar(&checkCoverage, "coverage", false, "check coverage thresholds and exit")
	flags.StringVar(&cfg.Name, "name", "", "name the project")
	flags.BoolVarP(&cfg.Debug, "verbose", "v", false, "print additional debugging info")
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", false, "print as little as necessary")
	flags.StringVarP(&cfgFile, "config", "c", "", "specify config `file`")
	flags.BoolVar(&printConfig, "print-config", false, "Print default configuration and exit")
	flags.BoolVar(&printLatest, "latest", false, "Print latest version and exit")
	flags.StringVar(&debugConfig, "debug-config", "", "Write configuration to `file` and exit")

	if err := flags.Parse(rawArgs); err != nil {
		return err
	}
	args := flags.Args()[1:]

	if help {
		usage(cfg, flags)
		return nil
	}
	if version {
		cfg.Printf("%s", Version)
		return nil
	}
	if printConfig {
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		cfg.Printf("%s", string(b))
		return nil
	}
	if !cfg.InCI {
		if env := os.Getenv("CI"); env == "true" || env == "1" || env == "yes" {
			cfg.InCI = true
		}
	}

	fileCfg, err := readConfigFile(cfgFile)
	if err != nil {
		return err
	}
	if fileCfg != nil {
		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
			return err
		}

		if fileCfg.Branches != nil && len(fileCfg.Branches) == 0 && !flags.Lookup("branch").Changed {
			cfg.Branches = fileCfg.Branches
		}
		if fileCfg.Policies != nil && len(fileCfg.Policies) == 0 && !flags.Lookup("policy").Changed {
			cfg.Policies = fileCfg.Policies
		}
	}
	if cfg.Debug {
		b, err := json.MarshalIndent(cfg, "", "  ")
		die(err)
		cfg.Debugf("config: %s", string(b))
	}
	branchesSet := false
	if fl := flags.Lookup("branch"); fl != nil && fl.Changed {
		branchesSet = true
	}
	if fileCfg != nil && fileCfg.Branches != nil {
		branchesSet = true
	}
	cfg.BranchesSet = branchesSet
	if noPolicy {
		cfg.Policies = nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		cfg.NoEdit = true
	}

	if debugConfig != "" {
		b, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		if debugConfig == "-" {
			cfg.Printf("%s", b)
		} else {
			if err := os.WriteFile(debugConfig, b, 0644); err != nil {
				return err
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if debugConfig != "" {
		return nil
	}
	// done setting up config

	var rc string
	if len(args) > 0 {
		rc = args[0]
	}
	ctx := context.Background()

	if checkCoverage {
		profile := cfg.Coverage.Profile
		if profile == "" {
			profile = defaultCoverProfile
		}
		rep, err := coverage.New(cfg).CheckFile(profile)
		if rep != nil && !cfg.Quiet {
			if serr := rep.TextSummary(cfg.Term.Stdout); serr != nil {
				return serr
			}
		}
		return err
	}

	git := gitcli.New(cfg, "")

	if installHooks || uninstallHooks {
		h := hooks.New(cfg, git)
		if uninstallHooks {
			return h.Uninstall(ctx)
		}
		return h.Install(ctx, force)
	}

	rnr, err := runner.New(cfg, git)
	if err != nil {
		return err
	}

	if readStats || readAllStats {
		stats, err := rnr.Stats(ctx)
		if err != nil {
			return err
		}
		if err := stats.TextSummary(cfg.Term.Stdout, readAllStats); err != nil {
			return err
		}
		return nil
	}

	shouldCheckCommits := checkCommitsFromGit || commitMsgFile != "" || flags.Lookup("check-commit").Changed
	if shouldCheckCommits {
		hasPipe := !isatty.IsTerminal(os.Stdin.Fd())
		var err error
		if commitMsgFile != "" {
			_, err = rnr.CheckCommitMsgFile(ctx, commitMsgFile)
		} else if checkCommitsFromGit {
			_, err = rnr.CheckCommitsFromGit(ctx, cfg.Scope)
		} else if hasPipe && len(checkCommits) == 1 && checkCommits[0] == "-" {
			_, err = rnr.CheckReadCommit(ctx, os.Stdin)
		} else {
			_, err = rnr.CheckCommits(ctx, checkCommits)
		}
		if err != nil {
			cf := runner.CheckFailure{}
			if errors.As(err, &cf) {
				if err := cf.WriteFailure(os.Stdout); err != nil {
					fmt.Fprintln(os.Stderr, "failed to write invalid commit information:", err)
				}
			}
			return err
		}
		cfg.Printf("OK")
		return nil
	}

	stdoutfd := os.Stdout.Fd()
	istty := isatty.IsTerminal(stdoutfd)

	if printLatest {
		latest, err := rnr.LatestRelease(ctx, cfg.Scope, rc)
		if err != nil {
			return err
		}
		tagTmpl, err := commit.NewTag(cfg.TagTemplate)
		if err != nil {
			return err
		}
		tag, err := runner.RenderTag(cfg, tagTmpl, &commit.Version{Version: latest})
		if err != nil {
			return err
		}
		if cfg.Quiet || !istty {
			fmt.Fprintf(cfg.Term.Stdout, "%s", tag)
		} else {
			fmt.Fprintln(cfg.Term.Stdout, tag)
		}
		return nil
	}

	if printChangelog {
		versions, err := rnr.Analyze(ctx, rc)
		if err != nil {
			return err
		}
		for _, ver := range versions {
			entry, err := rnr.ChangelogEntry(ver)
			if err != nil {
				return err
			}
			fmt.Fprint(cfg.Term.Stdout, entry)
		}
		return nil
	}

	if err := rnr.Check(ctx, rc); err != nil {
		return err
	}

	tag, err := commit.NewTag(cfg.TagTemplate)
	if err != nil {
		return err
	}

	versions, err := rnr.Analyze(ctx, rc)
	if err != nil {
		return err
	}
	cfg.Debugf("will tag %d:", len(versions))

	for _, ver := range versions {
		tag, err := runner.RenderTag(cfg, tag, ver)
		if err != nil {
			return err
		}
		if cfg.Quiet {
			if istty {
				fmt.Println(tag)
			} else {
				fmt.Print(tag)
			}
		} else {
			cfg.Printf("-> %s:%s", ver.ShortCommit(), tag)
		}
	}

	if err := rnr.CreateTags(ctx, versions); err != nil {
		return err
	}

	if cfg.InCI && len(versions) > 0 {
		cfg.Printf("Pushing tags in CI mode...")
		if err := rnr.PushTags(ctx); err != nil {
			return err
		}
		if cfg.GitHub.Release {
			gh, err := github.NewClient(cfg, git)
			if err != nil {
				return err
			}
			rnr.SetPublisher(gh)
			if err := rnr.Release(ctx, versions); err != nil {
				return err
			}
		}
	}
	return nil
}

func die(err error) {
	if err != nil {
		panic(err)
	}
}

func usage(cfg config.Config, flags *pflag.FlagSet) {
	cfg.Printf(`%s [rc]

A utility for trunk-based releases: commit checks, semver tags,
changelogs, and github releases.

FLAGS
%s
EXAMPLES

# bump the version, if there are any new commits
$ relkit

# bump the minor version regardless of the state of the branch.
$ relkit --minor

# tag a release candidate on the "beta" channel (v1.2.3-beta.0)
$ relkit beta

# bump the version for scope "myscope" only
$ relkit -s myscope

# validate against policies, allowed scopes, and allowed types:
$ relkit --check

# install the commit-msg and pre-push hooks
$ relkit --install-hooks

# enforce coverage thresholds against a cover profile
$ go test -coverprofile=coverage.out ./... && relkit --coverage
`, os.Args[0], flags.FlagUsages())
}

func readConfigFile(p string) (*config.Config, error) {
	if p != "" {
		return decodeConfigFile(p)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	for {
		for _, name := range []string{"relkit.yaml", "relkit.toml"} {
			candPath := filepath.Join(wd, name)
			if _, err := os.Stat(candPath); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return nil, err
			}
			return decodeConfigFile(candPath)
		}
		wd, _ = filepath.Split(filepath.Clean(wd))
		if wd == "/" {
			break
		}
	}
	return nil, nil
}

func decodeConfigFile(p string) (*config.Config, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	cfg := &config.Config{}
	if strings.EqualFold(filepath.Ext(p), ".toml") {
		if err := toml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

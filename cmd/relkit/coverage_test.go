package main

import (
	"os"
	"path/filepath"
	"testing"
)

// commit is 3/5 covered, config 4/5, total 7/10.
const coverProfile = `mode: set
github.com/relkit/relkit/commit/analyze.go:10.2,14.16 3 1
github.com/relkit/relkit/commit/analyze.go:20.2,24.16 2 0
github.com/relkit/relkit/config/config.go:10.2,14.16 4 1
github.com/relkit/relkit/config/config.go:20.2,24.16 1 0
`

func TestCoverageMode(t *testing.T) {
	tcs := []struct {
		name       string
		yaml       string
		profile    string
		shouldFail bool
	}{
		{
			name:    "pass",
			yaml:    "coverage:\n  profile: cover.out\n  global: 50\n",
			profile: "cover.out",
		},
		{
			name:       "fail",
			yaml:       "coverage:\n  profile: cover.out\n  global: 80\n",
			profile:    "cover.out",
			shouldFail: true,
		},
		{
			name:    "default-profile",
			yaml:    "coverage:\n  global: 50\n",
			profile: "coverage.out",
		},
		{
			name: "packages",
			yaml: "coverage:\n  profile: cover.out\n  packages:\n" +
				"    github.com/relkit/relkit/commit: 55\n" +
				"    github.com/relkit/relkit/config: 75\n",
			profile: "cover.out",
		},
		{
			name: "packages-uncovered",
			yaml: "coverage:\n  profile: cover.out\n  packages:\n" +
				"    github.com/relkit/relkit/commit: -1\n",
			profile:    "cover.out",
			shouldFail: true,
		},
		{
			name:       "missing-profile",
			yaml:       "coverage:\n  profile: cover.out\n  global: 50\n",
			shouldFail: true,
		},
	}

	currDir, err := os.Getwd()
	die(err)

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			defer os.Chdir(currDir)
			tmpDir, err := os.MkdirTemp("", "relkit-coverage")
			die(err)
			defer cleanupTempdir(t, tmpDir)
			die(os.Chdir(tmpDir))

			die(os.WriteFile(filepath.Join(tmpDir, "relkit.yaml"), []byte(tc.yaml), 0644))
			if tc.profile != "" {
				die(os.WriteFile(filepath.Join(tmpDir, tc.profile), []byte(coverProfile), 0644))
			}

			callRelkit(t, tc.shouldFail, "--coverage")
		})
	}
}

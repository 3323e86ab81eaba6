// Package hooks installs the git hooks that run commit checks.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/relkit/relkit/config"
	"github.com/relkit/relkit/vcs"
)

// marker identifies hook files written by relkit. Install and Uninstall
// never touch a hook file without it.
const marker = "# relkit maintained hook"

const commitMsgHook = `#!/bin/sh
` + marker + `. Edits are overwritten by relkit --install-hooks.

[ -n "$RELKIT_SKIP" ] && exit 0

exec relkit --commit-msg-file "$1"
`

const prePushHook = `#!/bin/sh
` + marker + `. Edits are overwritten by relkit --install-hooks.

[ -n "$RELKIT_SKIP" ] && exit 0

exec relkit --check
`

var hookScripts = []struct {
	name   string
	script string
}{
	{name: "commit-msg", script: commitMsgHook},
	{name: "pre-push", script: prePushHook},
}

type Hooks struct {
	cfg config.Config
	vcs vcs.Interface
}

func New(cfg config.Config, vcsi vcs.Interface) *Hooks {
	return &Hooks{cfg: cfg, vcs: vcsi}
}

// Install writes the commit-msg and pre-push hooks into the repository's
// hook directory. Hooks relkit wrote before are rewritten; anything else
// in the way is an error unless force is set.
func (h *Hooks) Install(ctx context.Context, force bool) error {
	dir, err := h.dir(ctx)
	if err != nil {
		return err
	}

	for _, hook := range hookScripts {
		p := filepath.Join(dir, hook.name)
		b, err := os.ReadFile(p)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		if err == nil && !ours(b) && !force {
			return fmt.Errorf("hooks: %s exists and was not installed by relkit (rerun with --force to overwrite)", p)
		}

		if h.cfg.Dryrun {
			h.cfg.Printf("+ write %s (dryrun)", p)
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(hook.script), 0755); err != nil {
			return err
		}
		// WriteFile only sets the mode on create.
		if err := os.Chmod(p, 0755); err != nil {
			return err
		}
		h.cfg.Printf("wrote %s", p)
	}
	return nil
}

// Uninstall removes the hooks Install wrote. Hook files relkit doesn't
// own are left alone with a warning.
func (h *Hooks) Uninstall(ctx context.Context) error {
	dir, err := h.dir(ctx)
	if err != nil {
		return err
	}

	for _, hook := range hookScripts {
		p := filepath.Join(dir, hook.name)
		b, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			h.cfg.Debugf("%s not installed", p)
			continue
		} else if err != nil {
			return err
		}
		if !ours(b) {
			h.cfg.Warning("not removing %s: not written by relkit", p)
			continue
		}

		if h.cfg.Dryrun {
			h.cfg.Printf("+ remove %s (dryrun)", p)
			continue
		}
		if err := os.Remove(p); err != nil {
			return err
		}
		h.cfg.Printf("removed %s", p)
	}
	return nil
}

func (h *Hooks) dir(ctx context.Context) (string, error) {
	gitDir, err := h.vcs.GitDir(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(gitDir, "hooks"), nil
}

func ours(b []byte) bool {
	return bytes.Contains(b, []byte(marker))
}

// Package relkit analyzes commits and creates release tags based on
// configured policies and behavior.
//
// Related packages: config, commit, runner, hooks, coverage, model, vcs,
// vcs/gitcli
package relkit

import "github.com/relkit/relkit/config"

// Config holds most of the configuration variables for relkit. This struct
// is intended for command-line use, so not all of its attributes are
// applicable to every operation.
//
// See "go doc github.com/relkit/relkit/config Config" for more information.
type Config = config.Config

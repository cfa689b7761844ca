// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/sangre/internal/meta"
)

const bashCompletionScript = `# bash completion for sangre
_sangre()
{
    local cur prev
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
    COMPREPLY=()

    if [[ ${COMP_CWORD} -eq 1 && $cur != -* ]]; then
        COMPREPLY=( $(compgen -W "completion" -- "$cur") )
        return 0
    fi

    case "$prev" in
    -f|--format)
        COMPREPLY=( $(compgen -W "text json yaml raw" -- "$cur") )
        return 0
        ;;
    -t|--ticker|--ttl|--quota|--max-retries|--timeout)
        return 0
        ;;
    completion)
        COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
        return 0
        ;;
    esac

    local opts="--ticker -t --format -f --color --no-color --refresh --status --clear-cache --clear-all --ttl --quota --max-retries --timeout --version -v --help -h"
    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
}
complete -F _sangre sangre
`

const zshCompletionScript = `#compdef sangre

_sangre() {
  if (( CURRENT == 2 )) && [[ $words[2] != -* ]]; then
    local -a cmds
    cmds=('completion:generate shell completion script')
    _describe -t commands 'sangre commands' cmds
    return
  fi

  case $words[2] in
    completion)
      _arguments '1: :((bash zsh))'
      ;;
    *)
      _arguments -C \
        '*'{-t,--ticker}'[ticker symbol]:ticker' \
        '(-f --format)'{-f,--format}'[output format]:format:(text json yaml raw)' \
        '(--no-color)--color[colored text output]' \
        '(--color)--no-color[plain text output]' \
        '--refresh[ignore fresh cache entries]' \
        '(--clear-cache --clear-all)--status[show rate limit and cache status]' \
        '(--status --clear-all)--clear-cache[clear cached quotes]' \
        '(--status --clear-cache)--clear-all[clear cached quotes and rate limit history]' \
        '--ttl[cache freshness]:duration' \
        '--quota[requests per window]:count' \
        '--max-retries[attempts per ticker]:count' \
        '--timeout[per attempt timeout]:duration'
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _sangre sangre
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	w := cmd.Root().Writer
	shell := cmd.Args().First()
	if shell == "" {
		// Try to detect from SHELL.
		sh := os.Getenv("SHELL")
		switch {
		case strings.HasSuffix(sh, "zsh"):
			shell = "zsh"
		case strings.HasSuffix(sh, "bash"):
			shell = "bash"
		}
	}

	switch shell {
	case "bash":
		_, err := fmt.Fprint(w, bashCompletionScript)
		return err
	case "zsh":
		_, err := fmt.Fprint(w, zshCompletionScript)
		return err
	default:
		return fmt.Errorf("usage: sangre completion [bash|zsh]")
	}
}

func CompletionCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "sangre completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}

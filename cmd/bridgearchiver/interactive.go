package main

import (
	"context"
	"os"

	"golang.org/x/term"
)

type interactiveCtxKeyType struct{}

var interactiveCtxKey = interactiveCtxKeyType{}

// isInteractiveEnvironment reports whether a person is likely watching stderr,
// where progress and the sealed archive location are printed.
func isInteractiveEnvironment() bool {
	return detectInteractive(os.Getenv, term.IsTerminal, int(os.Stderr.Fd()))
}

// detectInteractive is false on CI runners and dumb terminals, and otherwise
// follows whether fd is a terminal. BRIDGEARCHIVER_INTERACTIVE=0 or 1 overrides it.
func detectInteractive(getenv func(string) string, isTerminal func(int) bool, fd int) bool {
	switch getenv("BRIDGEARCHIVER_INTERACTIVE") {
	case "0", "false":
		return false
	case "1", "true":
		return true
	}
	if getenv("CI") != "" || getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal(fd)
}

func withInteractive(ctx context.Context, interactive bool) context.Context {
	return context.WithValue(ctx, interactiveCtxKey, interactive)
}

func isInteractive(ctx context.Context) bool {
	interactive, _ := ctx.Value(interactiveCtxKey).(bool)
	return interactive
}

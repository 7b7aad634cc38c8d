package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectInteractive(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		terminal bool
		want     bool
	}{
		{name: "terminal", terminal: true, want: true},
		{name: "not a terminal", terminal: false, want: false},
		{name: "ci", env: map[string]string{"CI": "true"}, terminal: true, want: false},
		{name: "dumb terminal", env: map[string]string{"TERM": "dumb"}, terminal: true, want: false},
		{name: "forced on", env: map[string]string{"BRIDGEARCHIVER_INTERACTIVE": "1", "CI": "true"}, terminal: false, want: true},
		{name: "forced off", env: map[string]string{"BRIDGEARCHIVER_INTERACTIVE": "false"}, terminal: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(key string) string { return tt.env[key] }
			var gotFd int
			isTerminal := func(fd int) bool {
				gotFd = fd
				return tt.terminal
			}

			assert.Equal(t, tt.want, detectInteractive(getenv, isTerminal, 2))
			if gotFd != 0 {
				assert.Equal(t, 2, gotFd)
			}
		})
	}
}

func TestInteractiveContext(t *testing.T) {
	assert.False(t, isInteractive(t.Context()))
	assert.True(t, isInteractive(withInteractive(t.Context(), true)))
	assert.False(t, isInteractive(withInteractive(t.Context(), false)))
}

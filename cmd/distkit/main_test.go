package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlagWiring(t *testing.T) {
	// Both --version and -V resolve through the one cobra-managed flag, so
	// the version short-circuit runs before required-flag validation.
	flag := rootCmd.Flags().Lookup("version")
	require.NotNil(t, flag)
	assert.Equal(t, "V", flag.Shorthand)
	assert.Equal(t, version, rootCmd.Version)
}

func TestVerifyCommandRegistered(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "verify" {
			require.NotNil(t, cmd.RunE)
			return
		}
	}
	t.Fatal("verify subcommand not registered")
}

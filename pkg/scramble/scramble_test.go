package scramble

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func testLogger() hclog.Logger {
	return hclog.NewNullLogger()
}

func TestScrambleRunsTemplate(t *testing.T) {
	s, err := Discover(t.TempDir(), "true {dir} {paths} {classpath}", testLogger())
	require.NoError(t, err)
	require.NotNil(t, s)

	err = s.Scramble(context.Background(), Request{
		PluginDir: "/tmp/plugins/json",
		Paths:     []string{"lib/json.jar"},
		Classpath: []string{"/tmp/lib/app.jar", "/tmp/lib/util.jar"},
	})
	require.NoError(t, err)
}

func TestScrambleBadTemplate(t *testing.T) {
	s, err := Discover(t.TempDir(), "run 'unterminated {dir}", testLogger())
	require.NoError(t, err)
	require.NotNil(t, s)

	err = s.Scramble(context.Background(), Request{PluginDir: "/tmp/p"})
	require.ErrorIs(t, err, ErrUnclosedQuote)
}

func TestScrambleToolFailure(t *testing.T) {
	s, err := Discover(t.TempDir(), "false", testLogger())
	require.NoError(t, err)
	require.NotNil(t, s)

	err = s.Scramble(context.Background(), Request{PluginDir: "/tmp/p"})
	require.Error(t, err)
}

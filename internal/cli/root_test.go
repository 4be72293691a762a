package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"margem/internal/apierror"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})
	require.NotNil(t, cmd)
	assert.Equal(t, "margem-admin", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})
	commands := [][]string{
		{"login"}, {"logout"}, {"whoami"},
		{"stores", "get"}, {"mobile", "get"}, {"support", "get"},
		{"partners", "list"}, {"reference"}, {"dashboard"},
		{"reports", "summary"}, {"reports", "stores"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})

	for _, name := range []string{"api-url", "debug", "metrics-file"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	output := cmd.PersistentFlags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "o", output.Shorthand)
	assert.Equal(t, OutputTable, output.DefValue)
}

func TestAPIFailure(t *testing.T) {
	t.Run("auth errors end the session", func(t *testing.T) {
		err := apiFailure(apierror.New(apierror.CodeUnauthorized, apierror.MsgUnauthorized))
		assert.Equal(t, ExitUnauthenticated, err.Code)
		assert.Equal(t, "UNAUTHORIZED", err.Reason)
		assert.Equal(t, apierror.MsgUnauthorized, err.Message)
		assert.Equal(t, apierror.MsgUnauthorized, err.Error())
	})

	t.Run("other errors fail the command", func(t *testing.T) {
		err := apiFailure(apierror.New(apierror.CodeConflict, apierror.MsgConflict))
		assert.Equal(t, ExitFailure, err.Code)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})
}

func TestModules(t *testing.T) {
	assert.Equal(t, "-", modules(false, false, false, false))
	assert.Equal(t, "offerta,scanner", modules(true, false, false, true))
}

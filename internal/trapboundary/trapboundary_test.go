package trapboundary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunSuccess(t *testing.T) {
	result := Run(func() error { return nil })
	require.NoError(t, result.Err)
	require.False(t, result.Panicked)
}

func TestRunReturnsError(t *testing.T) {
	wantErr := errors.New("host trap")
	result := Run(func() error { return wantErr })
	require.Equal(t, wantErr, result.Err)
	require.False(t, result.Panicked)
}

func TestRunRecoversPanic(t *testing.T) {
	result := Run(func() error {
		panic("memory limit exceeded")
	})
	require.True(t, result.Panicked)
	require.Equal(t, "memory limit exceeded", result.PanicMessage)
	require.NotEmpty(t, result.CallStack)
}

func TestRunRecoversPanicWithError(t *testing.T) {
	result := Run(func() error {
		panic(errors.New("boom"))
	})
	require.True(t, result.Panicked)
	require.Contains(t, result.PanicMessage, "boom")
}

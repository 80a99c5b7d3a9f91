package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrDuration,
		ErrTarget,
		ErrSSH,
		ErrTunnel,
		ErrConnection,
		ErrCollection,
		ErrNoSamples,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "duration error",
			code:       ErrDuration,
			message:    "Invalid duration format: '5x'",
			suggestion: "Use formats like: 5m, 3h, 1d, 24, 0.5h",
		},
		{
			name:       "tunnel error",
			code:       ErrTunnel,
			message:    "Couldn't open tunnel through bastion",
			suggestion: "Check the jumphost is reachable",
		},
		{
			name:       "no samples",
			code:       ErrNoSamples,
			message:    "No samples collected",
			suggestion: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		expectedParts []string
	}{
		{
			name:          "message and suggestion",
			err:           New(ErrConfig, "Invalid configuration", "Check config.yaml syntax"),
			expectedParts: []string{"✗", "Invalid configuration", "Check config.yaml syntax"},
		},
		{
			name:          "cause is included",
			err:           WrapWithCode(errors.New("connection refused"), ErrConnection, "Request failed", ""),
			expectedParts: []string{"Request failed", "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := tt.err.Error()
			for _, part := range tt.expectedParts {
				assert.Contains(t, output, part)
			}
		})
	}
}

func TestErrorMessageStructure(t *testing.T) {
	err := WrapWithCode(
		errors.New("dial tcp: i/o timeout"),
		ErrTunnel,
		"Can't reach jumphost 'bastion'",
		"Check your network connection",
	)

	lines := strings.Split(err.Error(), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "✗"))
	assert.Contains(t, lines[0], "Can't reach jumphost 'bastion'")
}

func TestWrap(t *testing.T) {
	cause := errors.New("EOF")
	wrapped := Wrap(cause, "Redfish request failed")

	assert.Equal(t, ErrConnection, wrapped.Code, "Wrap should default to ErrConnection")
	assert.Equal(t, cause, wrapped.Cause)
	assert.True(t, errors.Is(wrapped, cause))
}

func TestIsCode(t *testing.T) {
	err := New(ErrCollection, "Sample failed", "")
	wrapped := fmt.Errorf("cycle 3: %w", err)

	assert.True(t, IsCode(err, ErrCollection))
	assert.True(t, IsCode(wrapped, ErrCollection))
	assert.False(t, IsCode(err, ErrTunnel))
	assert.False(t, IsCode(errors.New("plain"), ErrCollection))
	assert.False(t, IsCode(nil, ErrCollection))
}

func TestCode(t *testing.T) {
	assert.Equal(t, ErrTunnel, Code(New(ErrTunnel, "x", "")))
	assert.Equal(t, "", Code(errors.New("plain")))
}

func TestSummary(t *testing.T) {
	inner := WrapWithCode(errors.New("connection refused"), ErrConnection, "GET /Chassis failed", "")
	outer := WrapWithCode(inner, ErrCollection, "Error collecting sample after 3 attempts", "")

	assert.Equal(t, "Error collecting sample after 3 attempts: GET /Chassis failed: connection refused", outer.Summary())
	assert.Equal(t, "No samples", New(ErrNoSamples, "No samples", "hint").Summary())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, "boom: why", Message(WrapWithCode(errors.New("why"), ErrTunnel, "boom", "fix")))
}

func TestExitError(t *testing.T) {
	err := NewExitError(1)
	assert.Equal(t, "exit code 1", err.Error())

	code, ok := GetExitCode(fmt.Errorf("wrapped: %w", err))
	assert.True(t, ok)
	assert.Equal(t, 1, code)

	_, ok = GetExitCode(New(ErrConfig, "x", ""))
	assert.False(t, ok)

	_, ok = GetExitCode(nil)
	assert.False(t, ok)
}

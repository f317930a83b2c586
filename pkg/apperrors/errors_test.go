package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessageIncludesStatusAndDetail(t *testing.T) {
	err := &Error{
		Kind:    KindRemoteUnavailable,
		Op:      "find application",
		Message: "compliance engine request failed",
		Status:  503,
		Detail:  "maintenance window",
	}

	assert.Equal(t, "find application: compliance engine request failed (status 503): maintenance window", err.Error())
}

func TestError_MessageFallsBackToCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindRemoteUnavailable, "login", cause, "cannot reach %s", "ce.local")

	assert.Equal(t, "login: cannot reach ce.local: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(KindInternal, "op", nil, "ignored"))
}

func TestError_IsSentinels(t *testing.T) {
	assert.ErrorIs(t, New(KindNotFound, "get", "missing"), ErrNotFound)
	assert.ErrorIs(t, New(KindRemoteConflict, "create", "exists"), ErrConflict)
	assert.NotErrorIs(t, New(KindConfiguration, "validate", "bad"), ErrNotFound)
}

func TestKindOf_WrappedChain(t *testing.T) {
	base := Configuration("validate", "oracle sid and service name are mutually exclusive")
	wrapped := fmt.Errorf("load: %w", base)

	assert.Equal(t, KindConfiguration, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindConfiguration))
	assert.False(t, IsKind(nil, KindConfiguration))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestFrom_KeepsTypedErrors(t *testing.T) {
	typed := DependencyMissing("ensure ruleset", "connector handle is missing")
	got := From("create all", fmt.Errorf("chain: %w", typed))
	require.NotNil(t, got)
	assert.Same(t, typed, got)

	plain := From("create all", errors.New("boom"))
	require.NotNil(t, plain)
	assert.Equal(t, KindInternal, plain.Kind)
	assert.Nil(t, From("noop", nil))
}

func TestError_IsRetryable(t *testing.T) {
	assert.True(t, (&Error{Kind: KindRemoteUnavailable, Retryable: true}).IsRetryable())
	assert.False(t, (&Error{Kind: KindRemoteConflict}).IsRetryable())
}

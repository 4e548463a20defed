package client

import (
	"errors"
	"fmt"
	"testing"

	"github.com/algoroom/algoroom/internal/database/types/enum"
	"github.com/stretchr/testify/assert"
)

func TestErrorKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindUsernameNotFound, "USERNAME_NOT_FOUND"},
		{KindRateLimited, "RATE_LIMIT"},
		{KindInvalidResponse, "INVALID_RESPONSE"},
		{KindTransient, "API_ERROR"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "classified error",
			err:  newError(enum.PlatformLeetCode, KindUsernameNotFound, 404, "ghost"),
			want: KindUsernameNotFound,
		},
		{
			name: "wrapped classified error",
			err:  fmt.Errorf("fetch failed: %w", newError(enum.PlatformGitHub, KindRateLimited, 429, "")),
			want: KindRateLimited,
		},
		{
			name: "raw transport error",
			err:  errors.New("connection refused"),
			want: KindTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	b := base{platform: enum.PlatformGitHub}

	tests := []struct {
		status int
		want   ErrorKind
	}{
		{404, KindUsernameNotFound},
		{429, KindRateLimited},
		{500, KindTransient},
		{502, KindTransient},
	}

	for _, tt := range tests {
		err := b.classifyStatus(tt.status, "")
		assert.Equal(t, tt.want, KindOf(err), "status %d", tt.status)
	}
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	notFound := newError(enum.PlatformCodeforces, KindUsernameNotFound, 400, "missing handle")
	limited := newError(enum.PlatformGitHub, KindRateLimited, 403, "quota")

	assert.True(t, IsUsernameNotFound(notFound))
	assert.False(t, IsUsernameNotFound(limited))
	assert.True(t, IsRateLimited(limited))
	assert.False(t, IsRateLimited(nil))
	assert.False(t, IsUsernameNotFound(errors.New("nope")))
}

func TestErrorMessageIncludesContext(t *testing.T) {
	t.Parallel()

	err := newError(enum.PlatformLeetCode, KindRateLimited, 429, "slow down")
	assert.Contains(t, err.Error(), "leetcode")
	assert.Contains(t, err.Error(), "RATE_LIMIT")
	assert.Contains(t, err.Error(), "429")
}

package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.class.String())
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"storage unavailable", ErrStorageUnavailable, true},
		{"rate limited", ErrRateLimited, true},
		{"context canceled", context.Canceled, true},
		{"invalid path", ErrInvalidPath, false},
		{"timeout in message", fmt.Errorf("backend timeout"), true},
		{"classified invalid", WrapInvalid(fmt.Errorf("connection"), "C", "M", "op"), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsTransient(test.err))
		})
	}
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrInvalidComponentName))
	assert.True(t, IsInvalid(fmt.Errorf("wrapped: %w", ErrInvalidPath)))
	assert.True(t, IsInvalid(WrapInvalid(fmt.Errorf("bad"), "Store", "UpdateByPath", "path parse")))
	assert.False(t, IsInvalid(ErrTenantNotFound))
	assert.False(t, IsInvalid(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(WrapFatal(fmt.Errorf("x"), "C", "M", "op")))
	assert.False(t, IsFatal(ErrConnectionLost))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(Wrap(ErrTenantNotFound, "KVStore", "GetTenantBlob", "get")))
	assert.True(t, IsNotFound(ErrPageNotFound))
	assert.False(t, IsNotFound(ErrSaveConflict))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidData))
	assert.Equal(t, ErrorFatal, Classify(ErrMissingConfig))
	assert.Equal(t, ErrorTransient, Classify(ErrConnectionLost))
	assert.Equal(t, ErrorTransient, Classify(fmt.Errorf("something odd")))
}

func TestWrap(t *testing.T) {
	base := fmt.Errorf("boom")
	err := Wrap(base, "Resolver", "Resolve", "module load")
	assert.EqualError(t, err, "Resolver.Resolve: module load failed: boom")
	assert.ErrorIs(t, err, base)
	assert.Nil(t, Wrap(nil, "a", "b", "c"))

	classified := WrapTransient(base, "HTTPStore", "SavePage", "post")
	var ce *ClassifiedError
	assert.True(t, As(classified, &ce))
	assert.Equal(t, "HTTPStore", ce.Component)
	assert.Equal(t, "SavePage", ce.Operation)
	assert.Equal(t, ErrorTransient, ce.Class)
}

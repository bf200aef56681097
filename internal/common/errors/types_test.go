package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheErrorMessage(t *testing.T) {
	err := BackingStoreError("failed to fetch entry", stderrors.New("timeout"))
	assert.Contains(t, err.Error(), "backing_store")
	assert.Contains(t, err.Error(), "failed to fetch entry")
	assert.Contains(t, err.Error(), "timeout")
}

func TestCacheErrorUnwrap(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := ConnectionError("failed to connect to Redis", cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, stderrors.Is(err, cause))
}

func TestCacheErrorWithContext(t *testing.T) {
	err := ProviderUnavailableError("redis", nil).WithContext("operation", "get")
	assert.Contains(t, err.Error(), "operation=get")
}

func TestIsType(t *testing.T) {
	assert.True(t, IsType(ConfigError("missing dsn"), ErrTypeConfig))
	assert.False(t, IsType(ConfigError("missing dsn"), ErrTypeConnection))
	assert.False(t, IsType(stderrors.New("plain"), ErrTypeConfig))
	assert.False(t, IsType(nil, ErrTypeConfig))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeSerialization, GetType(SerializationError("bad value", nil)))
	assert.Equal(t, ErrTypeInvalidInvalidation, GetType(InvalidInvalidationError("unsupported mode")))
	assert.Equal(t, ErrTypeBackingStore, GetType(stderrors.New("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}

func TestConstructorTypes(t *testing.T) {
	assert.Equal(t, ErrTypeProviderUnavailable, ProviderUnavailableError("memory", nil).Type)
	assert.Contains(t, ProviderUnavailableError("memory", nil).Error(), "memory")
	assert.Equal(t, ErrTypeBackingStore, BackingStoreError("x", nil).Type)
	assert.Equal(t, ErrTypeConnection, ConnectionError("x", nil).Type)
}

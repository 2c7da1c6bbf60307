package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailuresKey(t *testing.T) {
	assert.Equal(t, "librigo:login_failures:alice", failuresKey("alice"))
	assert.Equal(t, failuresKey("alice"), failuresKey("Alice"), "key is case-insensitive")
}

func TestNewStoreFromURL_InvalidURL(t *testing.T) {
	_, err := NewStoreFromURL("not-a-redis-url")
	assert.Error(t, err)
}

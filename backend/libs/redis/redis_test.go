package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisClient_RequiresAddr(t *testing.T) {
	client, err := NewRedisClient(Options{Addr: "  "})

	assert.Nil(t, client)
	assert.EqualError(t, err, "redis: addr is empty")
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOptions(t *testing.T) {
	opt, err := RedisOptions(&Config{RedisURL: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)

	opt, err = RedisOptions(&Config{RedisURL: "localhost:6379", RedisPassword: "pw", RedisDB: 1})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 1, opt.DB)

	_, err = RedisOptions(&Config{RedisURL: "redis://host:notaport/x/y"})
	assert.Error(t, err)
}

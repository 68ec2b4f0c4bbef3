package postgres

import (
	"testing"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestInitUnreachable(t *testing.T) {
	b := New(config.DBConfig{Host: "127.0.0.1", Port: "1", Username: "rig", Database: "mocaprig"}, nil)
	err := b.Init()
	assert.Error(t, err)
	assert.NoError(t, b.Close())
}

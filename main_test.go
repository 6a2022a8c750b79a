package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SharedBoard/internal/config"
)

func TestPeerArgsDefaults(t *testing.T) {
	cfg := config.Default()

	host, port, name, err := peerArgs(cfg, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 3200, port)
	assert.Equal(t, "Genesis", name)

	_, _, name, err = peerArgs(cfg, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Alien", name)
}

func TestPeerArgsPositional(t *testing.T) {
	cfg := config.Default()
	cfg.Peer.Name = "fromfile"

	host, port, name, err := peerArgs(cfg, []string{"10.0.0.5", "4000", "Ada"}, false)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", host)
	assert.Equal(t, 4000, port)
	assert.Equal(t, "Ada", name)

	host, _, name, err = peerArgs(cfg, []string{"auto"}, false)
	require.NoError(t, err)
	assert.Equal(t, "auto", host)
	assert.Equal(t, "fromfile", name)
}

func TestPeerArgsErrors(t *testing.T) {
	cfg := config.Default()
	_, _, _, err := peerArgs(cfg, []string{"h", "port", "n"}, false)
	assert.Error(t, err)
	_, _, _, err = peerArgs(cfg, []string{"h", "70000"}, false)
	assert.Error(t, err)
	_, _, _, err = peerArgs(cfg, []string{"a", "1", "b", "c"}, false)
	assert.Error(t, err)

	cfg.Peer.Addr = "no-port"
	_, _, _, err = peerArgs(cfg, nil, false)
	assert.Error(t, err)
}

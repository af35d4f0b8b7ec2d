package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/session"
)

func TestLocalPlayerNameMatchesReplicatedForm(t *testing.T) {
	p := localPlayer("id-1", "  john!!@#$ ", true)
	assert.Equal(t, "JOHN", p.Name)
	assert.True(t, p.IsHost)

	p = localPlayer("id-2", "!!!", false)
	assert.Equal(t, "PLAYER", p.Name)
}

func TestFindPlayer(t *testing.T) {
	snap := session.Snapshot{Players: []session.Player{
		{ID: "abc-123", Name: "ALICE"},
		{ID: "def-456", Name: "BOB"},
	}}

	id, ok := findPlayer(snap, "bob")
	assert.True(t, ok)
	assert.Equal(t, "def-456", id)

	id, ok = findPlayer(snap, "abc")
	assert.True(t, ok)
	assert.Equal(t, "abc-123", id)

	_, ok = findPlayer(snap, "nobody")
	assert.False(t, ok)
}

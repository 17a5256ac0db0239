package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExternalTools_NilClientHasNoTools(t *testing.T) {
	e := NewExternalTools(nil)
	assert.False(t, e.Has("anything"))
}

func TestExternalTools_NoServersHasNoTools(t *testing.T) {
	client := NewClient()
	defer client.Close()

	e := NewExternalTools(client)
	assert.False(t, e.Has("calculator_sum"))
}

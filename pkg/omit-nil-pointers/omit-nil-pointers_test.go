package omitnilpointers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOmitNilPointers(t *testing.T) {
	platform := "netflix"
	var missing *string

	got := OmitNilPointers(map[string]any{
		"position": 12.5,
		"platform": &platform,
		"missing":  missing,
		"nil":      nil,
	})

	assert.Equal(t, map[string]any{
		"position": 12.5,
		"platform": "netflix",
	}, got)
}

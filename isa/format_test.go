package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterSetString(t *testing.T) {
	assert.Equal(t, "local", SetLocal.String())
	assert.Equal(t, "parameters", SetParameters.String())
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "FormatN", FormatN.String())
	assert.Equal(t, "FormatT", FormatT.String())
	assert.Equal(t, "FormatF", FormatF.String())
}

// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesceString(t *testing.T) {
	assert.Equal(t, "a", CoalesceString("a", "b"))
	assert.Equal(t, "b", CoalesceString("", "b"))
	assert.Equal(t, "", CoalesceString("", ""))
	assert.Equal(t, "", CoalesceString())
}

func TestIntPtr(t *testing.T) {
	p := IntPtr(42)
	assert.Equal(t, 42, IntValue(p))
	assert.Equal(t, 0, IntValue(nil))
}

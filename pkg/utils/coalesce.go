// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

// Package utils holds small helpers shared by the command and library
// code.
package utils

// CoalesceString returns the first non-empty string from the given
// arguments. Used to layer command-line flags over config file values.
func CoalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

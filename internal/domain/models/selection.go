// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package models

// SelectionState is the tri-state applied to a search criterion.
type SelectionState int

const (
	// Deselected is a hard NOT: the associated item must not match.
	Deselected SelectionState = -1
	// Clear means the associated item is ignored; no constraint is emitted.
	Clear SelectionState = 0
	// Selected is a hard YES: the associated item must match.
	Selected SelectionState = 1
)

// String returns the lowercase name of the state.
func (s SelectionState) String() string {
	switch s {
	case Deselected:
		return "deselected"
	case Selected:
		return "selected"
	default:
		return "clear"
	}
}

// Selectable wraps a domain item known to the session with a selection
// state. One wrapper is created per known item when search criteria are
// built, and lives for the lifetime of the criteria.
type Selectable[T any] struct {
	Item      T
	Selection SelectionState
	Extra     any
}

// SelectableServiceBody wraps a service body for criteria selection.
type SelectableServiceBody = Selectable[*ServiceBody]

// SelectableFormat wraps a format for criteria selection.
type SelectableFormat = Selectable[*Format]

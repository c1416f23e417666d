// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package models

import (
	"strconv"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
)

// Permission is the access level an authenticated user holds for a
// service body.
type Permission int

const (
	PermissionNone Permission = iota
	PermissionObserver
	PermissionEditor
	PermissionAdministrator
)

// CanObserve reports whether the level grants at least observer access.
func (p Permission) CanObserve() bool { return p >= PermissionObserver }

// CanEdit reports whether the level grants at least editor access.
func (p Permission) CanEdit() bool { return p >= PermissionEditor }

// CanAdminister reports whether the level grants administrator access.
func (p Permission) CanAdminister() bool { return p == PermissionAdministrator }

// ServiceBody is an organizational unit owning one or more meetings.
// Bodies form a hierarchy; each node links to its parent and children.
// Permission levels are held by the session, not the node, so a body can
// be shared across sessions with different credentials.
type ServiceBody struct {
	fields   map[string]string
	Parent   *ServiceBody
	Children []*ServiceBody
	Extra    any
}

// NewServiceBody builds a ServiceBody from a raw field map. The id must
// be numeric.
func NewServiceBody(fields map[string]string) (*ServiceBody, error) {
	if _, err := strconv.Atoi(fields["id"]); err != nil {
		return nil, domain.NewMalformedFieldError("service body id is not numeric", err)
	}
	sb := &ServiceBody{fields: make(map[string]string, len(fields))}
	for k, v := range fields {
		sb.fields[k] = v
	}
	return sb, nil
}

// ID returns the service body's numeric id.
func (sb *ServiceBody) ID() int {
	id, _ := strconv.Atoi(sb.fields["id"])
	return id
}

// ParentID returns the id of the parent body, or 0 for a top-level body.
func (sb *ServiceBody) ParentID() int {
	id, _ := strconv.Atoi(sb.fields["parent_id"])
	return id
}

// Name returns the service body name.
func (sb *ServiceBody) Name() string {
	return sb.fields["name"]
}

// Description returns the description, falling back to the name when the
// server left it blank.
func (sb *ServiceBody) Description() string {
	if d := sb.fields["description"]; d != "" {
		return d
	}
	return sb.Name()
}

// Field returns the raw value for an arbitrary key.
func (sb *ServiceBody) Field(key string) (string, bool) {
	v, ok := sb.fields[key]
	return v, ok
}

// HasParent reports whether this body is nested under another.
func (sb *ServiceBody) HasParent() bool { return sb.Parent != nil }

// HasChildren reports whether this body contains other bodies.
func (sb *ServiceBody) HasChildren() bool { return len(sb.Children) > 0 }

// IsInHierarchy reports whether the given id names this body or any body
// nested beneath it.
func (sb *ServiceBody) IsInHierarchy(id int) bool {
	if sb.ID() == id {
		return true
	}
	for _, child := range sb.Children {
		if child.IsInHierarchy(id) {
			return true
		}
	}
	return false
}

// Depth returns how many levels below a top-level body this node sits.
func (sb *ServiceBody) Depth() int {
	depth := 0
	for p := sb.Parent; p != nil; p = p.Parent {
		depth++
	}
	return depth
}

// LinkHierarchy wires parent and child references for a flat list of
// bodies using their parent_id fields. Bodies referencing an unknown
// parent are left top-level.
func LinkHierarchy(bodies []*ServiceBody) {
	byID := make(map[int]*ServiceBody, len(bodies))
	for _, sb := range bodies {
		byID[sb.ID()] = sb
	}
	for _, sb := range bodies {
		parent, ok := byID[sb.ParentID()]
		if !ok || parent == sb {
			continue
		}
		sb.Parent = parent
		parent.Children = append(parent.Children, sb)
	}
}

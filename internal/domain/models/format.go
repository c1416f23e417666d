// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package models

import (
	"strconv"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
)

// Format is a tag describing a meeting attribute (for example "open" or
// "wheelchair accessible"). It wraps the raw string field map returned by
// the root server's GetFormats endpoint.
type Format struct {
	fields map[string]string
}

// NewFormat builds a Format from a raw field map. The shared id must be
// numeric and the key string must be present.
func NewFormat(fields map[string]string) (*Format, error) {
	if _, err := strconv.Atoi(fields["id"]); err != nil {
		return nil, domain.NewMalformedFieldError("format id is not numeric", err)
	}
	if fields["key_string"] == "" {
		return nil, domain.NewMalformedFieldError("format key_string is empty")
	}
	f := &Format{fields: make(map[string]string, len(fields))}
	for k, v := range fields {
		f.fields[k] = v
	}
	return f, nil
}

// ID returns the format's shared numeric id.
func (f *Format) ID() int {
	id, _ := strconv.Atoi(f.fields["id"])
	return id
}

// Key returns the short string key (for example "O", "C", "WC").
func (f *Format) Key() string {
	return f.fields["key_string"]
}

// Name returns the human-readable format name.
func (f *Format) Name() string {
	return f.fields["name_string"]
}

// Description returns the long format description.
func (f *Format) Description() string {
	return f.fields["description_string"]
}

// Lang returns the format's language indicator.
func (f *Format) Lang() string {
	return f.fields["lang"]
}

// WorldID returns the NAWS world id, which may be empty.
func (f *Format) WorldID() string {
	return f.fields["world_id"]
}

// Field returns the raw value for an arbitrary key.
func (f *Format) Field(key string) (string, bool) {
	v, ok := f.fields[key]
	return v, ok
}

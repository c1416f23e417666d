// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
)

// EditableMeeting is a mutable meeting record. It composes the read-only
// view with an "original" snapshot captured at construction, so edits
// can be detected, reverted, or committed as a new baseline.
//
// Not safe for concurrent mutation: the record assumes a single logical
// writer, matching the session's single-callback delivery model.
type EditableMeeting struct {
	Meeting
	original map[string]string
}

// NewEditableMeeting builds an editable record from a raw field map and
// snapshots it as the original state.
func NewEditableMeeting(fields map[string]string, reg Registry) (*EditableMeeting, error) {
	m, err := NewMeeting(fields, reg)
	if err != nil {
		return nil, err
	}
	return &EditableMeeting{
		Meeting:  *m,
		original: m.Fields(),
	}, nil
}

// IsEditable is always true for this record.
func (m *EditableMeeting) IsEditable() bool { return true }

// OriginalFields returns a copy of the snapshot taken at construction
// (or at the last SetChanges).
func (m *EditableMeeting) OriginalFields() map[string]string {
	return maps.Clone(m.original)
}

// SetField writes a raw value into the current field map.
func (m *EditableMeeting) SetField(key, value string) {
	m.fields[key] = value
}

// SetName sets the meeting name.
func (m *EditableMeeting) SetName(name string) { m.SetField(FieldName, name) }

// SetComments sets the free-form comments.
func (m *EditableMeeting) SetComments(comments string) { m.SetField(FieldComments, comments) }

// SetWorldID sets the NAWS id.
func (m *EditableMeeting) SetWorldID(worldID string) { m.SetField(FieldWorldID, worldID) }

// SetPublished sets the published flag.
func (m *EditableMeeting) SetPublished(published bool) {
	if published {
		m.SetField(FieldPublished, "1")
	} else {
		m.SetField(FieldPublished, "0")
	}
}

// SetServiceBodyID reassigns the meeting to another service body.
func (m *EditableMeeting) SetServiceBodyID(id int) {
	m.SetField(FieldServiceBody, strconv.Itoa(id))
}

// SetWeekdayIndex sets the weekday. Out-of-range values are ignored.
func (m *EditableMeeting) SetWeekdayIndex(weekday int) {
	if weekday >= 1 && weekday <= 7 {
		m.SetField(FieldWeekday, strconv.Itoa(weekday))
	}
}

// SetCoordinates sets the meeting location.
func (m *EditableMeeting) SetCoordinates(latitude, longitude float64) {
	m.SetField(FieldLatitude, strconv.FormatFloat(latitude, 'f', -1, 64))
	m.SetField(FieldLongitude, strconv.FormatFloat(longitude, 'f', -1, 64))
}

// SetLocationName sets the location building name.
func (m *EditableMeeting) SetLocationName(v string) { m.SetField(FieldLocationName, v) }

// SetLocationInfo sets the additional location info.
func (m *EditableMeeting) SetLocationInfo(v string) { m.SetField(FieldLocationInfo, v) }

// SetLocationStreetAddress sets the street address.
func (m *EditableMeeting) SetLocationStreetAddress(v string) { m.SetField(FieldStreet, v) }

// SetLocationBorough sets the borough or city subsection.
func (m *EditableMeeting) SetLocationBorough(v string) { m.SetField(FieldBorough, v) }

// SetLocationNeighborhood sets the neighborhood.
func (m *EditableMeeting) SetLocationNeighborhood(v string) { m.SetField(FieldNeighborhood, v) }

// SetLocationTown sets the municipality.
func (m *EditableMeeting) SetLocationTown(v string) { m.SetField(FieldTown, v) }

// SetLocationCounty sets the sub-province or county.
func (m *EditableMeeting) SetLocationCounty(v string) { m.SetField(FieldCounty, v) }

// SetLocationState sets the state or province.
func (m *EditableMeeting) SetLocationState(v string) { m.SetField(FieldState, v) }

// SetLocationZip sets the postal code.
func (m *EditableMeeting) SetLocationZip(v string) { m.SetField(FieldZip, v) }

// SetTimeString parses a military time string ("HH:MM" or "HHMM") and
// stores it as the start time. Midnight is always stored as 23:59, so
// the meeting stays on its nominal day.
func (m *EditableMeeting) SetTimeString(value string) error {
	var hour, minute int
	if strings.Contains(value, ":") {
		var err error
		hour, minute, err = parseClock(value)
		if err != nil {
			return domain.NewMalformedFieldError("start time", err)
		}
	} else {
		simple, err := strconv.Atoi(value)
		if err != nil {
			return domain.NewMalformedFieldError("start time", err)
		}
		hour, minute = simple/100, simple%100
	}
	if (hour == 0 || hour == 24) && minute == 0 {
		hour, minute = 23, 59
	}
	m.SetField(FieldStartTime, fmt.Sprintf("%02d:%02d:00", hour, minute))
	return nil
}

// SetDurationInMinutes sets the duration. Values of a full day or more
// are ignored.
func (m *EditableMeeting) SetDurationInMinutes(minutes int) {
	if minutes < 0 || minutes >= 1440 {
		return
	}
	m.SetField(FieldDuration, fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60))
}

// SetFormats replaces the format list with a freshly sorted comma join
// of the given formats' keys. Formats unknown to the session registry
// are silently dropped.
func (m *EditableMeeting) SetFormats(formats []*Format) {
	var keys []string
	for _, f := range formats {
		if f == nil {
			continue
		}
		if m.reg != nil {
			if _, err := m.reg.FormatByID(f.ID()); err != nil {
				continue
			}
		}
		keys = append(keys, f.Key())
	}
	slices.Sort(keys)
	m.SetField(FieldFormats, strings.Join(keys, ","))
}

// AddFormat adds one format to the list. Already-present and unknown
// formats are no-ops.
func (m *EditableMeeting) AddFormat(f *Format) {
	current := m.Formats()
	for _, existing := range current {
		if existing.ID() == f.ID() {
			return
		}
	}
	m.SetFormats(append(current, f))
}

// RemoveFormat removes one format from the list; absent formats are a
// no-op.
func (m *EditableMeeting) RemoveFormat(f *Format) {
	current := m.Formats()
	kept := current[:0]
	for _, existing := range current {
		if existing.ID() != f.ID() {
			kept = append(kept, existing)
		}
	}
	m.SetFormats(kept)
}

// IsDirty reports whether the current map differs from the original
// snapshot in any key other than the id. The formats field is compared
// as a sorted set, since reordering codes is not a change.
func (m *EditableMeeting) IsDirty() bool {
	keys := make(map[string]struct{}, len(m.fields)+len(m.original))
	for k := range m.fields {
		keys[k] = struct{}{}
	}
	for k := range m.original {
		keys[k] = struct{}{}
	}
	for key := range keys {
		if key == FieldID {
			continue
		}
		if key == FieldFormats {
			if !equalFormatSets(m.original[key], m.fields[key]) {
				return true
			}
			continue
		}
		if m.original[key] != m.fields[key] {
			return true
		}
	}
	return false
}

func equalFormatSets(a, b string) bool {
	as := strings.Split(a, ",")
	bs := strings.Split(b, ",")
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

// ValueChanged reports whether a single field differs from the original
// snapshot.
func (m *EditableMeeting) ValueChanged(key string) bool {
	orig, origOK := m.original[key]
	cur, curOK := m.fields[key]
	if origOK != curOK {
		return true
	}
	return orig != cur
}

// RestoreToOriginal discards all edits, replacing the current map with
// the original snapshot.
func (m *EditableMeeting) RestoreToOriginal() {
	m.fields = maps.Clone(m.original)
}

// SetChanges commits the current map as the new baseline, clearing
// dirtiness. Called after a save is dispatched.
func (m *EditableMeeting) SetChanges() {
	if m.IsDirty() {
		m.original = m.Fields()
	}
}

// RevertToBeforeChange replaces the current map wholesale with the
// change's "before" snapshot, making the record dirty relative to its
// pre-revert original. The before snapshot must exist and itself be
// editable by the current session.
func (m *EditableMeeting) RevertToBeforeChange(change *Change) error {
	if change == nil || change.Before == nil {
		return domain.NewDataIntegrityError("change has no before snapshot to revert to")
	}
	if !change.Before.IsEditable() {
		return domain.NewPermissionDeniedError("no edit rights on the change's before snapshot")
	}
	m.fields = change.Before.Fields()
	return nil
}

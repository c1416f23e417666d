// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
)

// Well-known meeting field keys from the root server wire format.
const (
	FieldID            = "id_bigint"
	FieldServiceBody   = "service_body_bigint"
	FieldWeekday       = "weekday_tinyint"
	FieldStartTime     = "start_time"
	FieldDuration      = "duration_time"
	FieldFormats       = "formats"
	FieldLongitude     = "longitude"
	FieldLatitude      = "latitude"
	FieldName          = "meeting_name"
	FieldLocationName  = "location_text"
	FieldLocationInfo  = "location_info"
	FieldStreet        = "location_street"
	FieldBorough       = "location_city_subsection"
	FieldNeighborhood  = "location_neighborhood"
	FieldTown          = "location_municipality"
	FieldCounty        = "location_sub_province"
	FieldState         = "location_province"
	FieldZip           = "location_postal_code_1"
	FieldComments      = "comments"
	FieldPublished     = "published"
	FieldWorldID       = "worldid_mixed"
	FieldDistanceMiles = "distance_in_miles"
	FieldDistanceKm    = "distance_in_km"
)

// StandardFieldKeys lists the keys every meeting record should carry,
// in display order. The server may add more.
var StandardFieldKeys = []string{
	FieldID, FieldServiceBody, FieldWeekday, FieldStartTime, FieldDuration,
	FieldFormats, FieldLongitude, FieldLatitude, FieldName, FieldLocationName,
	FieldLocationInfo, FieldStreet, FieldBorough, FieldNeighborhood, FieldTown,
	FieldCounty, FieldState, FieldZip, FieldComments,
}

// Registry resolves shared entities known to a connected session. It is
// a non-owning back-reference: records never mutate the registry.
type Registry interface {
	FormatByKey(key string) (*Format, error)
	FormatByID(id int) (*Format, error)
	ServiceBodyByID(id int) (*ServiceBody, error)
	// MeetingFieldKeys returns the field keys the connected server
	// advertises for meeting records.
	MeetingFieldKeys() []string
}

// MeetingRecord is the read-only view shared by plain and editable
// meeting records.
type MeetingRecord interface {
	ID() int
	Field(key string) (string, bool)
	Fields() map[string]string
	IsEditable() bool
}

// MeetingFactory builds typed meeting records with session-appropriate
// permissions: an editable record when the user may edit the meeting's
// service body, a read-only record otherwise.
type MeetingFactory interface {
	Registry
	BuildMeeting(fields map[string]string) (MeetingRecord, error)
}

// Meeting is a read-only typed view over a raw string-keyed field map,
// mirroring the wire format: every value is stored as a string even when
// numeric or boolean. Derived accessors are pure functions over the map
// and return best-effort zero values for missing or malformed data.
type Meeting struct {
	fields map[string]string
	reg    Registry
}

// NewMeeting builds a Meeting from a raw field map. Time-shaped fields
// present in the map must parse; anything else is accepted as-is, since
// the server may add fields at any time.
func NewMeeting(fields map[string]string, reg Registry) (*Meeting, error) {
	for _, key := range []string{FieldStartTime, FieldDuration} {
		if v, ok := fields[key]; ok && v != "" {
			if _, _, err := parseClock(v); err != nil {
				return nil, domain.NewMalformedFieldError(fmt.Sprintf("meeting field %q", key), err)
			}
		}
	}
	m := &Meeting{fields: make(map[string]string, len(fields)), reg: reg}
	for k, v := range fields {
		m.fields[k] = v
	}
	return m, nil
}

// parseClock parses "HH:MM" or "HH:MM:SS" into hours and minutes.
func parseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("time %q is not HH:MM[:SS]", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("time %q has non-numeric hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("time %q has non-numeric minute", s)
	}
	return hour, minute, nil
}

// Field returns the raw value for a key. An unknown key reports false
// rather than a crash or an empty-vs-missing ambiguity. The formats
// field is always returned re-sorted so downstream comparisons are
// order-insensitive.
func (m *Meeting) Field(key string) (string, bool) {
	if key == FieldFormats {
		if _, ok := m.fields[FieldFormats]; !ok {
			return "", false
		}
		return m.FormatsAsCSVList(), true
	}
	v, ok := m.fields[key]
	return v, ok
}

func (m *Meeting) get(key string) string {
	v, _ := m.Field(key)
	return v
}

// Fields returns a copy of the underlying field map.
func (m *Meeting) Fields() map[string]string {
	out := make(map[string]string, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}

// Keys returns the record's field keys with the standard keys first (in
// their canonical order, plus published), then any extras sorted.
func (m *Meeting) Keys() []string {
	order := append(slices.Clone(StandardFieldKeys), FieldPublished)
	var keys []string
	for _, key := range order {
		if _, ok := m.fields[key]; ok {
			keys = append(keys, key)
		}
	}
	extra := make([]string, 0, len(m.fields))
	for key := range m.fields {
		if !slices.Contains(keys, key) {
			extra = append(extra, key)
		}
	}
	slices.Sort(extra)
	return append(keys, extra...)
}

// IsEditable is always false for the read-only record.
func (m *Meeting) IsEditable() bool { return false }

// ID returns the meeting's BMLT id.
func (m *Meeting) ID() int {
	id, _ := strconv.Atoi(m.get(FieldID))
	return id
}

// WorldID returns the meeting's NAWS id.
func (m *Meeting) WorldID() string { return m.get(FieldWorldID) }

// ServiceBodyID returns the owning service body's id.
func (m *Meeting) ServiceBodyID() int {
	id, _ := strconv.Atoi(m.get(FieldServiceBody))
	return id
}

// ServiceBody resolves the owning service body through the session
// registry. It returns nil if the body is unknown.
func (m *Meeting) ServiceBody() *ServiceBody {
	if m.reg == nil {
		return nil
	}
	sb, err := m.reg.ServiceBodyByID(m.ServiceBodyID())
	if err != nil {
		return nil
	}
	return sb
}

// Name returns the meeting name.
func (m *Meeting) Name() string { return m.get(FieldName) }

// Comments returns the free-form comments.
func (m *Meeting) Comments() string { return m.get(FieldComments) }

// Published reports whether the meeting is published.
func (m *Meeting) Published() bool { return m.get(FieldPublished) == "1" }

// WeekdayIndex returns the meeting weekday (1 = Sunday .. 7 = Saturday).
func (m *Meeting) WeekdayIndex() int {
	wd, _ := strconv.Atoi(m.get(FieldWeekday))
	return wd
}

// FormatsAsCSVList returns the stored format codes as a CSV string
// sorted alphabetically, regardless of storage order.
func (m *Meeting) FormatsAsCSVList() string {
	raw := m.fields[FieldFormats]
	if raw == "" {
		return ""
	}
	list := strings.Split(raw, ",")
	slices.Sort(list)
	return strings.Join(list, ",")
}

// Formats resolves the meeting's format codes against the session
// registry. Unknown codes are skipped.
func (m *Meeting) Formats() []*Format {
	if m.reg == nil {
		return nil
	}
	var out []*Format
	for _, key := range strings.Split(m.FormatsAsCSVList(), ",") {
		if key == "" {
			continue
		}
		f, err := m.reg.FormatByKey(key)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

// snapMidnight applies the display convention for times in the
// [23:55, 24:00) band: they are shown as 24:00. The stored value is
// never altered.
func snapMidnight(hour, minute int) (int, int, bool) {
	if hour == 23 && minute > 54 {
		return 24, 0, true
	}
	return hour, minute, false
}

// TimeString returns the start time as "HH:MM" in military format,
// snapping [23:55, 24:00) to "24:00" for display. This distinguishes
// "ends at midnight" from "starts at midnight".
func (m *Meeting) TimeString() string {
	raw, ok := m.fields[FieldStartTime]
	if !ok || raw == "" {
		return "00:00"
	}
	hour, minute, err := parseClock(raw)
	if err != nil {
		return "00:00"
	}
	hour, minute, _ = snapMidnight(hour, minute)
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// DurationString returns the duration as "HH:MM".
func (m *Meeting) DurationString() string {
	raw, ok := m.fields[FieldDuration]
	if !ok || raw == "" {
		return "00:00"
	}
	hour, minute, err := parseClock(raw)
	if err != nil {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// DurationInMinutes returns the duration in whole minutes.
func (m *Meeting) DurationInMinutes() int {
	hour, minute, err := parseClock(m.get(FieldDuration))
	if err != nil {
		return 0
	}
	return hour*60 + minute
}

// StartTimeAndDay returns the weekday and start time together. When the
// midnight snap applies, the weekday advances by one (wrapping 7 back to
// 1) and the time resets to 00:00.
func (m *Meeting) StartTimeAndDay() (weekday, hour, minute int, ok bool) {
	raw, present := m.fields[FieldStartTime]
	if !present {
		return 0, 0, 0, false
	}
	hour, minute, err := parseClock(raw)
	if err != nil {
		return 0, 0, 0, false
	}
	weekday = m.WeekdayIndex()
	var snapped bool
	if hour, minute, snapped = snapMidnight(hour, minute); snapped {
		hour, minute = 0, 0
		weekday++
		if weekday > 7 {
			weekday = 1
		}
	}
	return weekday, hour, minute, true
}

// TimeDayAsInteger returns a sortable composite key: weekday in the ten
// thousands, hours in the hundreds, minutes in the ones. It uses the
// same midnight snap as StartTimeAndDay, so meetings sort
// chronologically without date math.
func (m *Meeting) TimeDayAsInteger() int {
	weekday, hour, minute, ok := m.StartTimeAndDay()
	if !ok {
		return 0
	}
	return weekday*10000 + hour*100 + minute
}

// startSeconds returns the snapped start time as seconds from midnight,
// treating an exact 00:00 start as 24:00. A meeting literally stored as
// starting at midnight is therefore the latest meeting of its day, not
// the earliest. This intentionally runs opposite to the TimeString snap;
// preserve as-observed.
func (m *Meeting) startSeconds() (int, bool) {
	_, hour, minute, ok := m.StartTimeAndDay()
	if !ok {
		return 0, false
	}
	if hour == 0 && minute == 0 {
		hour = 24
	}
	return hour*3600 + minute*60, true
}

// StartsOnOrAfter reports whether the meeting starts at or after the
// given time, expressed as seconds from midnight.
func (m *Meeting) StartsOnOrAfter(secondsFromMidnight int) bool {
	start, ok := m.startSeconds()
	return ok && start >= secondsFromMidnight
}

// StartsOnOrBefore reports whether the meeting starts at or before the
// given time, expressed as seconds from midnight.
func (m *Meeting) StartsOnOrBefore(secondsFromMidnight int) bool {
	start, ok := m.startSeconds()
	return ok && start <= secondsFromMidnight
}

// EndsAtOrBefore reports whether the meeting has ended by the given
// time, expressed as seconds from midnight.
func (m *Meeting) EndsAtOrBefore(secondsFromMidnight int) bool {
	start, ok := m.startSeconds()
	return ok && start+m.DurationInMinutes()*60 <= secondsFromMidnight
}

// Latitude returns the meeting's latitude, or 0 when absent.
func (m *Meeting) Latitude() float64 {
	v, _ := strconv.ParseFloat(m.get(FieldLatitude), 64)
	return v
}

// Longitude returns the meeting's longitude, or 0 when absent.
func (m *Meeting) Longitude() float64 {
	v, _ := strconv.ParseFloat(m.get(FieldLongitude), 64)
	return v
}

// DistanceInMiles returns the distance from the search center, when the
// search provided one.
func (m *Meeting) DistanceInMiles() float64 {
	v, _ := strconv.ParseFloat(m.get(FieldDistanceMiles), 64)
	return v
}

// DistanceInKm returns the distance from the search center, when the
// search provided one.
func (m *Meeting) DistanceInKm() float64 {
	v, _ := strconv.ParseFloat(m.get(FieldDistanceKm), 64)
	return v
}

// LocationName returns the location building name.
func (m *Meeting) LocationName() string { return m.get(FieldLocationName) }

// LocationInfo returns the additional location info.
func (m *Meeting) LocationInfo() string { return m.get(FieldLocationInfo) }

// LocationStreetAddress returns the street address.
func (m *Meeting) LocationStreetAddress() string { return m.get(FieldStreet) }

// LocationBorough returns the borough or city subsection.
func (m *Meeting) LocationBorough() string { return m.get(FieldBorough) }

// LocationNeighborhood returns the neighborhood.
func (m *Meeting) LocationNeighborhood() string { return m.get(FieldNeighborhood) }

// LocationTown returns the municipality.
func (m *Meeting) LocationTown() string { return m.get(FieldTown) }

// LocationCounty returns the sub-province or county.
func (m *Meeting) LocationCounty() string { return m.get(FieldCounty) }

// LocationState returns the state or province.
func (m *Meeting) LocationState() string { return m.get(FieldState) }

// LocationZip returns the postal code.
func (m *Meeting) LocationZip() string { return m.get(FieldZip) }

// BasicAddress assembles a simple one-line address from the location
// fragments, skipping empties. The borough stands in for the town when
// both are present, since it is often the primary address for a city
// area.
func (m *Meeting) BasicAddress() string {
	townish := m.LocationBorough()
	if townish == "" {
		townish = m.LocationTown()
	}
	var parts []string
	for _, fragment := range []string{
		m.LocationName(), m.LocationStreetAddress(), townish, m.LocationState(), m.LocationZip(),
	} {
		if fragment != "" {
			parts = append(parts, fragment)
		}
	}
	return strings.Join(parts, ", ")
}

// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

// Package search gathers meeting search criteria and compiles them into
// the query-parameter string the root server's search endpoint expects.
// The criteria object does no communication itself: the owning session
// compiles it and hands the result to the transport.
package search

import (
	"github.com/bmlt-enabled/bmlt-client-go/internal/domain/models"
)

// Extent specifies what kind of results a search should return.
type Extent int

const (
	// MeetingsOnly returns meeting records only.
	MeetingsOnly Extent = iota
	// FormatsOnly returns only the formats used by the matching meetings.
	FormatsOnly
	// BothMeetingsAndFormats returns meetings and their used formats.
	BothMeetingsAndFormats
)

// PublishedStatus selects published, unpublished, or both kinds of
// meetings. Only meaningful when the session is authenticated as an
// administrator; unauthenticated searches always see published meetings.
type PublishedStatus int

const (
	PublishedStatusBoth PublishedStatus = iota
	PublishedStatusPublished
	PublishedStatusUnpublished
)

// Weekday indexes the weekday map (1 = Sunday .. 7 = Saturday).
type Weekday int

const (
	Sunday Weekday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// LatLng is a geographic search center.
type LatLng struct {
	Latitude  float64
	Longitude float64
}

// FieldValueQuery asks for meetings where one specific field matches a
// value.
type FieldValueQuery struct {
	Key           string
	Value         string
	CompleteMatch bool
	CaseSensitive bool
}

// Environment carries the ambient facts compilation depends on. It is
// injected rather than read from process state so sessions with
// different locales or credentials can share criteria code.
type Environment struct {
	// MetricUnits selects geo_width_km over geo_width for radius
	// searches.
	MetricUnits bool
	// AdminLoggedIn enables the advanced_published parameter.
	AdminLoggedIn bool
}

// DefaultAutoRadius is the default search radius: negative values ask
// the server to start at that many "units of results" and automatically
// widen or shrink the circle until roughly that many meetings match.
const DefaultAutoRadius = -10

// Criteria is the aggregate search query state for one session. The
// service-body and format wrappers snapshot the sets known at
// construction; selections are mutated in place by the caller.
type Criteria struct {
	serviceBodies []*models.SelectableServiceBody
	formats       []*models.SelectableFormat
	weekdays      map[Weekday]models.SelectionState

	// SearchString is a free-text search. When
	// SearchStringIsLocation is set the string is geocoded by the
	// server and the all/exact flags are ignored, as is
	// SearchLocation.
	SearchString           string
	SearchStringIsLocation bool
	SearchStringAll        bool
	SearchStringExact      bool

	// SearchRadius is the search circle size. Negative integer values
	// are auto-search thresholds (see DefaultAutoRadius); positive
	// values are in the environment's units.
	SearchRadius   float64
	SearchLocation *LatLng

	PublishedStatus    PublishedStatus
	SpecificFieldValue *FieldValueQuery

	// StartTimeSeconds / EndTimeSeconds / DurationSeconds are
	// seconds-from-midnight windows; nil means no constraint.
	StartTimeSeconds    *int
	MeetingsStartBefore bool
	EndTimeSeconds      *int
	DurationSeconds     *int
	MeetingsShorterThan bool
}

// NewCriteria builds criteria wrapping the given known service bodies
// and formats, everything cleared and the radius at its auto default.
func NewCriteria(serviceBodies []*models.ServiceBody, formats []*models.Format) *Criteria {
	c := &Criteria{
		serviceBodies: make([]*models.SelectableServiceBody, 0, len(serviceBodies)),
		formats:       make([]*models.SelectableFormat, 0, len(formats)),
		weekdays:      make(map[Weekday]models.SelectionState, 7),
		SearchRadius:  DefaultAutoRadius,
	}
	for _, sb := range serviceBodies {
		c.serviceBodies = append(c.serviceBodies, &models.SelectableServiceBody{Item: sb})
	}
	for _, f := range formats {
		c.formats = append(c.formats, &models.SelectableFormat{Item: f})
	}
	for day := Sunday; day <= Saturday; day++ {
		c.weekdays[day] = models.Clear
	}
	return c
}

// ServiceBodies returns the selectable service body wrappers.
func (c *Criteria) ServiceBodies() []*models.SelectableServiceBody { return c.serviceBodies }

// Formats returns the selectable format wrappers.
func (c *Criteria) Formats() []*models.SelectableFormat { return c.formats }

// ServiceBodyItem returns the wrapper for the given service body id, or
// nil when unknown.
func (c *Criteria) ServiceBodyItem(id int) *models.SelectableServiceBody {
	for _, item := range c.serviceBodies {
		if item.Item.ID() == id {
			return item
		}
	}
	return nil
}

// FormatItem returns the wrapper for the given format key, or nil when
// unknown.
func (c *Criteria) FormatItem(key string) *models.SelectableFormat {
	for _, item := range c.formats {
		if item.Item.Key() == key {
			return item
		}
	}
	return nil
}

// SetWeekday sets the selection state for one weekday. Out-of-range
// days are ignored; the map always holds exactly the seven days.
func (c *Criteria) SetWeekday(day Weekday, state models.SelectionState) {
	if day < Sunday || day > Saturday {
		return
	}
	c.weekdays[day] = state
}

// WeekdayState returns the selection state for one weekday.
func (c *Criteria) WeekdayState(day Weekday) models.SelectionState {
	return c.weekdays[day]
}

// IsDirty reports whether any criterion deviates from the defaults.
func (c *Criteria) IsDirty() bool {
	for _, item := range c.serviceBodies {
		if item.Selection != models.Clear {
			return true
		}
	}
	for _, item := range c.formats {
		if item.Selection != models.Clear {
			return true
		}
	}
	for _, state := range c.weekdays {
		if state != models.Clear {
			return true
		}
	}
	if c.SearchString != "" || c.SearchLocation != nil {
		return true
	}
	if c.StartTimeSeconds != nil || c.EndTimeSeconds != nil || c.DurationSeconds != nil {
		return true
	}
	if c.SpecificFieldValue != nil && c.SpecificFieldValue.Key != "" {
		return true
	}
	return false
}

// ClearAll resets every criterion to its default without discarding the
// known service-body and format sets.
func (c *Criteria) ClearAll() {
	for _, item := range c.serviceBodies {
		item.Selection = models.Clear
	}
	for _, item := range c.formats {
		item.Selection = models.Clear
	}
	for day := range c.weekdays {
		c.weekdays[day] = models.Clear
	}
	c.SearchString = ""
	c.SearchStringIsLocation = false
	c.SearchStringAll = false
	c.SearchStringExact = false
	c.SearchRadius = DefaultAutoRadius
	c.SearchLocation = nil
	c.PublishedStatus = PublishedStatusBoth
	c.SpecificFieldValue = nil
	c.StartTimeSeconds = nil
	c.MeetingsStartBefore = false
	c.EndTimeSeconds = nil
	c.DurationSeconds = nil
	c.MeetingsShorterThan = false
}

// ClearStorage additionally discards the known service-body and format
// sets. Used at session teardown.
func (c *Criteria) ClearStorage() {
	c.serviceBodies = nil
	c.formats = nil
	c.ClearAll()
}

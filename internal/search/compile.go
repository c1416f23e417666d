// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package search

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain/models"
)

// Compile translates the criteria into the query-parameter string for
// the root server's search endpoint. The output is a pure function of
// the criteria and the environment: compiling twice without mutation
// yields byte-identical strings. Absent or default criteria are simply
// omitted, never rejected.
func (c *Criteria) Compile(extent Extent, env Environment) string {
	var b strings.Builder

	switch extent {
	case FormatsOnly:
		b.WriteString("&get_formats_only")
	case BothMeetingsAndFormats:
		b.WriteString("&get_used_formats")
	}

	for _, item := range c.serviceBodies {
		if item.Selection == models.Clear {
			continue
		}
		b.WriteString("&services[]=")
		if item.Selection == models.Deselected {
			b.WriteString("-")
		}
		b.WriteString(strconv.Itoa(item.Item.ID()))
	}

	for _, item := range c.formats {
		if item.Selection == models.Clear {
			continue
		}
		b.WriteString("&formats[]=")
		if item.Selection == models.Deselected {
			b.WriteString("-")
		}
		b.WriteString(strconv.Itoa(item.Item.ID()))
	}

	for day := Sunday; day <= Saturday; day++ {
		state := c.weekdays[day]
		if state == models.Clear {
			continue
		}
		b.WriteString("&weekdays[]=")
		if state == models.Deselected {
			b.WriteString("-")
		}
		b.WriteString(strconv.Itoa(int(day)))
	}

	// An address-style string search switches both the radius parameter
	// name and which string flags apply.
	addressSearch := false
	if c.SearchString != "" {
		b.WriteString("&SearchString=")
		b.WriteString(url.QueryEscape(c.SearchString))
		if c.SearchStringIsLocation {
			addressSearch = true
			b.WriteString("&StringSearchIsAnAddress=1")
		} else {
			if c.SearchStringExact {
				b.WriteString("&SearchStringExact=1")
			}
			if c.SearchStringAll {
				b.WriteString("&SearchStringAll=1")
			}
		}
	}

	// An explicit center is ignored when the server is geocoding an
	// address string instead.
	if !addressSearch && c.SearchLocation != nil {
		b.WriteString("&lat_val=")
		b.WriteString(formatCoordinate(c.SearchLocation.Latitude))
		b.WriteString("&long_val=")
		b.WriteString(formatCoordinate(c.SearchLocation.Longitude))
	}

	if (addressSearch || c.SearchLocation != nil) && c.SearchRadius != 0 {
		if addressSearch {
			b.WriteString("&SearchStringRadius=")
		} else if env.MetricUnits {
			b.WriteString("&geo_width_km=")
		} else {
			b.WriteString("&geo_width=")
		}
		b.WriteString(formatRadius(c.SearchRadius))
	}

	if c.StartTimeSeconds != nil {
		hours, minutes := splitSeconds(*c.StartTimeSeconds)
		prefix := "&StartsAfter"
		if c.MeetingsStartBefore {
			prefix = "&StartsBefore"
		}
		if hours > 0 {
			b.WriteString(prefix + "H=" + strconv.Itoa(hours))
		}
		if minutes > 0 {
			b.WriteString(prefix + "M=" + strconv.Itoa(minutes))
		}
	}

	if c.EndTimeSeconds != nil {
		hours, minutes := splitSeconds(*c.EndTimeSeconds)
		if hours > 0 {
			b.WriteString("&EndsBeforeH=" + strconv.Itoa(hours))
		}
		if minutes > 0 {
			b.WriteString("&EndsBeforeM=" + strconv.Itoa(minutes))
		}
	}

	if c.DurationSeconds != nil {
		hours, minutes := splitSeconds(*c.DurationSeconds)
		prefix := "&MinDuration"
		if c.MeetingsShorterThan {
			prefix = "&MaxDuration"
		}
		if hours > 0 {
			b.WriteString(prefix + "H=" + strconv.Itoa(hours))
		}
		if minutes > 0 {
			b.WriteString(prefix + "M=" + strconv.Itoa(minutes))
		}
	}

	if q := c.SpecificFieldValue; q != nil && q.Key != "" {
		b.WriteString("&meeting_key=" + url.QueryEscape(q.Key))
		b.WriteString("&meeting_key_value=" + url.QueryEscape(q.Value))
		if q.CaseSensitive {
			b.WriteString("&meeting_key_match_case=1")
		}
		if q.CompleteMatch {
			b.WriteString("&meeting_key_contains=0")
		}
	}

	if env.AdminLoggedIn {
		switch c.PublishedStatus {
		case PublishedStatusPublished:
			b.WriteString("&advanced_published=1")
		case PublishedStatusBoth:
			b.WriteString("&advanced_published=0")
		default:
			b.WriteString("&advanced_published=-1")
		}
	}

	return b.String()
}

// formatCoordinate renders a latitude or longitude with up to twelve
// fractional digits and no trailing zeros.
func formatCoordinate(v float64) string {
	s := strconv.FormatFloat(v, 'f', 12, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// formatRadius renders the search radius. Negative values are the
// auto-search convention and go out as a literal signed integer;
// positive values get at most four significant digits.
func formatRadius(radius float64) string {
	if radius < 0 {
		return fmt.Sprintf("-%d", int(math.Abs(radius)))
	}
	return fmt.Sprintf("%.4g", radius)
}

// splitSeconds decomposes seconds from midnight into whole hours and
// leftover minutes.
func splitSeconds(seconds int) (hours, minutes int) {
	minutes = seconds / 60
	hours = minutes / 60
	minutes -= hours * 60
	return hours, minutes
}

// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package models

import (
	"strconv"
	"strings"
)

// ServerInfo describes a root server, from its GetServerInfo endpoint.
type ServerInfo struct {
	Version         string
	Langs           []string
	CenterLatitude  float64
	CenterLongitude float64
	SemanticAdmin   bool
}

// NewServerInfo builds a ServerInfo from the raw field map.
func NewServerInfo(fields map[string]string) *ServerInfo {
	info := &ServerInfo{
		Version:       fields["version"],
		SemanticAdmin: fields["semanticAdmin"] == "1",
	}
	if langs := fields["langs"]; langs != "" {
		info.Langs = strings.Split(langs, ",")
	}
	info.CenterLatitude, _ = strconv.ParseFloat(fields["centerLatitude"], 64)
	info.CenterLongitude, _ = strconv.ParseFloat(fields["centerLongitude"], 64)
	return info
}

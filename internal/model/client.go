package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ClientSummary is one client organization as listed by the backend.
type ClientSummary struct {
	ClientID      string `json:"client_id"`
	ClientName    string `json:"client_name"`
	Industry      string `json:"industry"`
	Region        string `json:"region,omitempty"`
	State         string `json:"state,omitempty"`
	EmployeeCount int    `json:"employee_count"`
}

// stateRegions maps US state codes to benchmarking regions. The table is
// fixed product data, not configuration.
var stateRegions = map[string]string{
	// Northeast
	"ME": "Northeast", "NH": "Northeast", "VT": "Northeast", "MA": "Northeast",
	"RI": "Northeast", "CT": "Northeast", "NY": "Northeast", "NJ": "Northeast",
	"PA": "Northeast",

	// Midwest
	"OH": "Midwest", "MI": "Midwest", "IN": "Midwest", "IL": "Midwest",
	"WI": "Midwest", "MN": "Midwest", "IA": "Midwest", "MO": "Midwest",
	"ND": "Midwest", "SD": "Midwest", "NE": "Midwest", "KS": "Midwest",

	// South
	"DE": "South", "MD": "South", "DC": "South", "VA": "South", "WV": "South",
	"NC": "South", "SC": "South", "GA": "South", "FL": "South", "KY": "South",
	"TN": "South", "AL": "South", "MS": "South", "AR": "South", "LA": "South",
	"OK": "South", "TX": "South",

	// West Coast / Pacific
	"WA": "Pacific Northwest", "OR": "Pacific Northwest",
	"CA": "West Coast", "AK": "West Coast", "HI": "West Coast",

	// Mountain West
	"MT": "Mountain West", "ID": "Mountain West", "WY": "Mountain West",
	"NV": "Mountain West", "UT": "Mountain West", "CO": "Mountain West",
	"AZ": "Mountain West", "NM": "Mountain West",
}

// ResolveRegion picks the benchmarking region for a new client. An explicit
// region wins; otherwise the state code resolves through the fixed table;
// clients with neither land in the National cohort.
func ResolveRegion(region, state string) string {
	if region != "" {
		return region
	}
	if r, ok := stateRegions[strings.ToUpper(strings.TrimSpace(state))]; ok {
		return r
	}
	return "National"
}

var titleCaser = cases.Title(language.AmericanEnglish)

// NormalizeIndustry canonicalizes a free-text industry label so cohort
// grouping does not split on casing ("healthcare" vs "Healthcare").
func NormalizeIndustry(industry string) string {
	s := strings.Join(strings.Fields(industry), " ")
	if s == "" {
		return s
	}
	return titleCaser.String(strings.ToLower(s))
}

// Package assess scores a client's plan design against common 401(k) design
// benchmarks and optionally narrates the result with Claude. The scorecard is
// fully deterministic; the narrative is presentation only.
package assess

import (
	"fmt"
	"sort"
	"strings"

	"github.com/planwise/planwise-cli/internal/model"
)

// Severity classifies a scorecard finding.
type Severity string

const (
	SeverityGood Severity = "good"
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
)

// Finding is one scorecard observation tied to a plan field.
type Finding struct {
	FieldID  string   `json:"field_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Points   int      `json:"points"`
}

// Scorecard is the deterministic assessment of one plan record.
type Scorecard struct {
	ClientID string    `json:"client_id"`
	Score    int       `json:"score"`
	MaxScore int       `json:"max_score"`
	Findings []Finding `json:"findings"`
}

// rule evaluates one aspect of the plan and returns a finding.
type rule struct {
	points int
	eval   func(rec *model.PlanRecord) Finding
}

func percentOf(rec *model.PlanRecord, fieldID string) float64 {
	v, ok := rec.Get(fieldID)
	if !ok {
		return 0
	}
	return v.Num
}

func boolOf(rec *model.PlanRecord, fieldID string) bool {
	v, ok := rec.Get(fieldID)
	return ok && v.Bool
}

func enumOf(rec *model.PlanRecord, fieldID string) string {
	v, ok := rec.Get(fieldID)
	if !ok {
		return ""
	}
	return v.Str
}

// rules is the benchmark set. Points sum to the max score; a finding earns
// its rule's points only at SeverityGood.
var rules = []rule{
	{points: 20, eval: func(rec *model.PlanRecord) Finding {
		if !boolOf(rec, "autoEnrollment") {
			return Finding{FieldID: "autoEnrollment", Severity: SeverityWarn,
				Message: "No auto-enrollment. Plans with auto-enrollment see participation rates above 90%."}
		}
		return Finding{FieldID: "autoEnrollment", Severity: SeverityGood, Points: 20,
			Message: "Auto-enrollment is enabled."}
	}},
	{points: 15, eval: func(rec *model.PlanRecord) Finding {
		if !boolOf(rec, "autoEnrollment") {
			return Finding{FieldID: "autoEnrollmentRate", Severity: SeverityInfo,
				Message: "Default rate not applicable without auto-enrollment."}
		}
		rate := percentOf(rec, "autoEnrollmentRate")
		if rate >= 6 {
			return Finding{FieldID: "autoEnrollmentRate", Severity: SeverityGood, Points: 15,
				Message: fmt.Sprintf("Default rate of %s%% meets the 6%% benchmark.", trimFloat(rate))}
		}
		return Finding{FieldID: "autoEnrollmentRate", Severity: SeverityWarn,
			Message: fmt.Sprintf("Default rate of %s%% is below the 6%% benchmark.", trimFloat(rate))}
	}},
	{points: 15, eval: func(rec *model.PlanRecord) Finding {
		if !boolOf(rec, "autoEscalation") {
			return Finding{FieldID: "autoEscalation", Severity: SeverityWarn,
				Message: "No auto-escalation. Deferral rates tend to stall at the default without it."}
		}
		return Finding{FieldID: "autoEscalation", Severity: SeverityGood, Points: 15,
			Message: "Auto-escalation is enabled."}
	}},
	{points: 20, eval: func(rec *model.PlanRecord) Finding {
		matchCap := percentOf(rec, "matchCap")
		if matchCap >= 4 {
			return Finding{FieldID: "matchCap", Severity: SeverityGood, Points: 20,
				Message: fmt.Sprintf("Match cap of %s%% is at or above the 4%% median.", trimFloat(matchCap))}
		}
		if matchCap > 0 {
			return Finding{FieldID: "matchCap", Severity: SeverityInfo,
				Message: fmt.Sprintf("Match cap of %s%% is below the 4%% median.", trimFloat(matchCap))}
		}
		return Finding{FieldID: "matchCap", Severity: SeverityWarn,
			Message: "No employer match on record."}
	}},
	{points: 15, eval: func(rec *model.PlanRecord) Finding {
		switch enumOf(rec, "vestingSchedule") {
		case "Immediate":
			return Finding{FieldID: "vestingSchedule", Severity: SeverityGood, Points: 15,
				Message: "Immediate vesting."}
		case "Graded":
			return Finding{FieldID: "vestingSchedule", Severity: SeverityInfo,
				Message: "Graded vesting. Consider the retention tradeoff against immediate vesting."}
		case "Cliff":
			years := percentOf(rec, "vestingCliff")
			if years > 3 {
				return Finding{FieldID: "vestingCliff", Severity: SeverityWarn,
					Message: fmt.Sprintf("Cliff vesting at %s years exceeds the 3-year statutory maximum for cliff schedules.", trimFloat(years))}
			}
			return Finding{FieldID: "vestingSchedule", Severity: SeverityInfo,
				Message: "Cliff vesting."}
		default:
			return Finding{FieldID: "vestingSchedule", Severity: SeverityWarn,
				Message: "No vesting schedule on record."}
		}
	}},
	{points: 15, eval: func(rec *model.PlanRecord) Finding {
		entry := enumOf(rec, "entryDate")
		service := enumOf(rec, "serviceRequirement")
		if entry == "Immediate" && service == "Immediate" {
			return Finding{FieldID: "entryDate", Severity: SeverityGood, Points: 15,
				Message: "Immediate eligibility and entry."}
		}
		if service == "1 Year" || service == "1 Year + 1,000 Hours" {
			return Finding{FieldID: "serviceRequirement", Severity: SeverityWarn,
				Message: "A one-year service requirement delays participation for new hires."}
		}
		return Finding{FieldID: "entryDate", Severity: SeverityInfo,
			Message: fmt.Sprintf("Entry %s with service requirement %q.", strings.ToLower(orUnset(entry)), orUnset(service))}
	}},
}

// Evaluate runs the benchmark rules against a plan record.
func Evaluate(clientID string, rec *model.PlanRecord) Scorecard {
	sc := Scorecard{ClientID: clientID}
	for _, r := range rules {
		sc.MaxScore += r.points
		f := r.eval(rec)
		sc.Score += f.Points
		sc.Findings = append(sc.Findings, f)
	}
	sort.SliceStable(sc.Findings, func(i, j int) bool {
		return severityRank(sc.Findings[i].Severity) < severityRank(sc.Findings[j].Severity)
	})
	return sc
}

func severityRank(s Severity) int {
	switch s {
	case SeverityWarn:
		return 0
	case SeverityInfo:
		return 1
	default:
		return 2
	}
}

func trimFloat(n float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", n), "0"), ".")
}

func orUnset(s string) string {
	if s == "" {
		return "unset"
	}
	return s
}

// Package registry holds the static plan-field catalog and its file loaders.
package registry

import (
	"github.com/planwise/planwise-cli/internal/model"
)

func f64(v float64) *float64 { return &v }

// builtinFields is the shipped plan-design catalog. Backend names follow the
// extraction service's display-name namespace, which is distinct from the
// field ids used everywhere else in this tool.
func builtinFields() []model.FieldDefinition {
	return []model.FieldDefinition{
		// Eligibility
		{
			ID: "minAge", Label: "Minimum Age",
			Category: model.CategoryEligibility, Type: model.TypeNumber,
			BackendName: "Eligibility",
			Bounds:      &model.Bounds{Min: f64(0), Max: f64(26), Step: 1},
		},
		{
			ID: "serviceRequirement", Label: "Service Requirement",
			Category: model.CategoryEligibility, Type: model.TypeSelect,
			BackendName: "Service Requirement",
			Options:     []string{"Immediate", "3 Months", "6 Months", "1,000 Hours", "1 Year", "1 Year + 1,000 Hours"},
		},
		{
			ID: "entryDate", Label: "Entry Date",
			Category: model.CategoryEligibility, Type: model.TypeSelect,
			BackendName: "Entry Date",
			Options:     []string{"Immediate", "Monthly", "Quarterly", "Semi-Annual"},
		},

		// Contributions
		{
			ID: "employerMatch", Label: "Match Formula",
			Category: model.CategoryContributions, Type: model.TypeText,
			BackendName: "Employer Match",
		},
		{
			ID: "matchCap", Label: "Match Cap",
			Category: model.CategoryContributions, Type: model.TypePercent,
			BackendName: "Match Effective Rate",
			Bounds:      &model.Bounds{Min: f64(0), Max: f64(0.15), Step: 0.001},
		},
		{
			ID: "nonElectiveContribution", Label: "Non-Elective Contrib.",
			Category: model.CategoryContributions, Type: model.TypePercent,
			BackendName: "Non-Elective Contribution",
		},

		// Vesting
		{
			ID: "vestingSchedule", Label: "Vesting Schedule",
			Category: model.CategoryVesting, Type: model.TypeSelect,
			BackendName: "Vesting Schedule",
			Options:     []string{"Immediate", "Cliff", "Graded"},
		},
		{
			ID: "vestingCliff", Label: "Vesting Period (Years)",
			Category: model.CategoryVesting, Type: model.TypeNumber,
			BackendName: "Vesting Period",
			Bounds:      &model.Bounds{Min: f64(0), Max: f64(7), Step: 1},
			Dependency: &model.Dependency{
				ParentID:      "vestingSchedule",
				AllowedValues: []model.FieldValue{model.EnumValue("Cliff"), model.EnumValue("Graded")},
			},
		},

		// Auto Features
		{
			ID: "autoEnrollment", Label: "Auto-Enrollment",
			Category: model.CategoryAutoFeatures, Type: model.TypeBoolean,
			BackendName: "Auto-Enrollment",
		},
		{
			ID: "autoEnrollmentRate", Label: "Default Rate",
			Category: model.CategoryAutoFeatures, Type: model.TypePercent,
			BackendName: "Auto-Enrollment Rate",
			Bounds:      &model.Bounds{Min: f64(0), Max: f64(0.20), Step: 0.01},
			Dependency: &model.Dependency{
				ParentID:      "autoEnrollment",
				AllowedValues: []model.FieldValue{model.BoolValue(true)},
			},
		},
		{
			ID: "autoEscalation", Label: "Auto-Escalation",
			Category: model.CategoryAutoFeatures, Type: model.TypeBoolean,
			BackendName: "Auto-Escalation",
		},
		{
			ID: "autoEscalationRate", Label: "Escalation Step",
			Category: model.CategoryAutoFeatures, Type: model.TypePercent,
			BackendName: "Auto-Escalation Rate",
			Bounds:      &model.Bounds{Min: f64(0), Max: f64(0.04), Step: 0.005},
			Dependency: &model.Dependency{
				ParentID:      "autoEscalation",
				AllowedValues: []model.FieldValue{model.BoolValue(true)},
			},
		},
		{
			ID: "autoEscalationCap", Label: "Escalation Cap",
			Category: model.CategoryAutoFeatures, Type: model.TypePercent,
			BackendName: "Auto-Escalation Cap",
			Bounds:      &model.Bounds{Min: f64(0), Max: f64(0.15), Step: 0.01},
			Dependency: &model.Dependency{
				ParentID:      "autoEscalation",
				AllowedValues: []model.FieldValue{model.BoolValue(true)},
			},
		},
	}
}

// Builtin returns the shipped field registry.
func Builtin() (*model.FieldRegistry, error) {
	return model.NewFieldRegistry(builtinFields())
}

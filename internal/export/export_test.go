package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/planwise/planwise-cli/internal/model"
	"github.com/planwise/planwise-cli/internal/registry"
)

func TestWritePlanMatrix(t *testing.T) {
	t.Parallel()

	reg, err := registry.Builtin()
	require.NoError(t, err)

	acme := model.NewPlanRecord()
	acme.Set("matchCap", model.PercentValue(4))
	acme.Set("vestingSchedule", model.EnumValue("Graded"))
	acme.Set("autoEnrollment", model.BoolValue(true))

	path := filepath.Join(t.TempDir(), "plans.xlsx")
	err = WritePlanMatrix(path, reg, PlanMatrix{
		Clients: []model.ClientSummary{
			{ClientID: "c1", ClientName: "Acme Corp", Industry: "Manufacturing", Region: "Midwest", State: "OH", EmployeeCount: 1200},
			{ClientID: "c2", ClientName: "Globex", Industry: "Technology", Region: "West Coast", State: "CA", EmployeeCount: 300},
		},
		Records: map[string]*model.PlanRecord{"c1": acme},
	})
	require.NoError(t, err)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	sheet := f.Sheets[0]
	assert.Equal(t, "Plan Design", sheet.Name)

	header := sheet.Rows[0]
	require.Len(t, header.Cells, 4)
	assert.Equal(t, "Acme Corp", header.Cells[2].String())
	assert.Equal(t, "Globex", header.Cells[3].String())

	// One row per catalog field below the header.
	assert.Len(t, sheet.Rows, len(reg.Fields)+1)

	var matchRow *xlsx.Row
	for _, row := range sheet.Rows[1:] {
		if len(row.Cells) > 1 && row.Cells[1].String() == "Match Cap (%)" {
			matchRow = row
			break
		}
	}
	require.NotNil(t, matchRow, "match cap row missing")
	got, err := matchRow.Cells[2].Float()
	require.NoError(t, err)
	assert.InDelta(t, 4, got, 1e-9)
	// Client without a record exports as blank, not zero.
	assert.Equal(t, "", matchRow.Cells[3].String())

	clients := f.Sheets[1]
	assert.Equal(t, "Clients", clients.Name)
	require.Len(t, clients.Rows, 3)
	assert.Equal(t, "Acme Corp", clients.Rows[1].Cells[0].String())
}

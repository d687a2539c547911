// Package export writes plan-design data to XLSX workbooks for sharing with
// clients and plan committees.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/planwise/planwise-cli/internal/model"
)

// PlanMatrix is the input for a comparison export: a set of clients and each
// client's current plan record, keyed by client id. Records hold UI-unit
// values; cells render via FieldValue.String, so percents read as whole
// numbers.
type PlanMatrix struct {
	Clients []model.ClientSummary
	Records map[string]*model.PlanRecord
}

// WritePlanMatrix writes a workbook with one comparison sheet: plan fields as
// rows grouped in catalog order, one column per client. Clients without a
// record get empty cells rather than being dropped.
func WritePlanMatrix(path string, reg *model.FieldRegistry, m PlanMatrix) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Plan Design")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	header.AddCell().SetString("Category")
	header.AddCell().SetString("Field")
	for _, c := range m.Clients {
		header.AddCell().SetString(c.ClientName)
	}

	for _, def := range reg.Fields {
		row := sheet.AddRow()
		row.AddCell().SetString(string(def.Category))
		label := def.Label
		if def.Type == model.TypePercent {
			label += " (%)"
		}
		row.AddCell().SetString(label)

		for _, c := range m.Clients {
			cell := row.AddCell()
			rec := m.Records[c.ClientID]
			if rec == nil {
				continue
			}
			v, ok := rec.Get(def.ID)
			if !ok {
				continue
			}
			switch v.Kind {
			case model.KindNumber, model.KindPercent:
				cell.SetFloat(v.Num)
			default:
				cell.SetString(v.String())
			}
		}
	}

	if err := addClientSheet(f, m.Clients); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// addClientSheet appends a summary sheet with one row per client.
func addClientSheet(f *xlsx.File, clients []model.ClientSummary) error {
	sheet, err := f.AddSheet("Clients")
	if err != nil {
		return eris.Wrap(err, "export: add clients sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Client", "Industry", "Region", "State", "Employees"} {
		header.AddCell().SetString(h)
	}

	for _, c := range clients {
		row := sheet.AddRow()
		row.AddCell().SetString(c.ClientName)
		row.AddCell().SetString(c.Industry)
		row.AddCell().SetString(c.Region)
		row.AddCell().SetString(c.State)
		row.AddCell().SetInt(c.EmployeeCount)
	}
	return nil
}

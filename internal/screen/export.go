package screen

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/kpi-screener/internal/model"
)

// ExportXLSX writes the screening result to an xlsx workbook: a "Passed"
// sheet with the passing instruments and, when the run collected audit
// data, an "Audit" sheet with the per-leaf windowed values.
func ExportXLSX(path string, result *model.ScreeningResult, leaves model.LeafSet, instruments []model.Instrument) error {
	byID := make(map[int]model.Instrument, len(instruments))
	for _, inst := range instruments {
		byID[inst.ID] = inst
	}

	file := xlsx.NewFile()

	passedSheet, err := file.AddSheet("Passed")
	if err != nil {
		return eris.Wrap(err, "screen: add passed sheet")
	}
	header := passedSheet.AddRow()
	for _, h := range []string{"Stock ID", "Ticker", "Name"} {
		header.AddCell().Value = h
	}
	for _, id := range result.Passed {
		inst := byID[id]
		row := passedSheet.AddRow()
		row.AddCell().SetInt(id)
		row.AddCell().Value = inst.Ticker
		row.AddCell().Value = inst.Name
	}

	if len(result.Results) > 0 {
		if err := writeAuditSheet(file, result, leaves, byID); err != nil {
			return err
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "screen: save workbook %s", path)
	}
	return nil
}

func writeAuditSheet(file *xlsx.File, result *model.ScreeningResult, leaves model.LeafSet, byID map[int]model.Instrument) error {
	sheet, err := file.AddSheet("Audit")
	if err != nil {
		return eris.Wrap(err, "screen: add audit sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Stock ID", "Ticker", "Leaf", "KPI", "Passed", "Window"} {
		header.AddCell().Value = h
	}

	// Stable leaf ordering inside each stock block.
	leafOrder := make([]model.LeafID, 0, len(leaves))
	for id := range leaves {
		leafOrder = append(leafOrder, id)
	}
	sort.Slice(leafOrder, func(i, j int) bool { return leafOrder[i] < leafOrder[j] })
	rank := make(map[model.LeafID]int, len(leafOrder))
	for i, id := range leafOrder {
		rank[id] = i
	}

	for _, sr := range result.Results {
		audit := append([]model.LeafAudit(nil), sr.Audit...)
		sort.Slice(audit, func(i, j int) bool { return rank[audit[i].Leaf] < rank[audit[j].Leaf] })

		for _, a := range audit {
			row := sheet.AddRow()
			row.AddCell().SetInt(sr.StockID)
			row.AddCell().Value = byID[sr.StockID].Ticker
			row.AddCell().Value = string(a.Leaf)
			row.AddCell().Value = a.KPI
			row.AddCell().SetBool(a.Passed)
			row.AddCell().Value = formatWindow(a.Window)
		}
	}
	return nil
}

func formatWindow(values []float64) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%g", v)
	}
	return out
}

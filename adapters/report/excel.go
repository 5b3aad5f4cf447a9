package report

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"

	"gosts/domain/run"
)

// Sheet names in the workbook.
const (
	SheetVerdicts   = "Verdicts"
	SheetComponents = "Components"
	SheetRuns       = "Runs"
)

// ExcelEmitter writes a workbook with one sheet per view of the result.
type ExcelEmitter struct{}

func (ExcelEmitter) Format() string    { return "xlsx" }
func (ExcelEmitter) Extension() string { return ".xlsx" }

// Emit implements ports.ReportEmitter.
func (ExcelEmitter) Emit(ctx context.Context, w io.Writer, res run.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetVerdicts); err != nil {
		return err
	}
	for _, name := range []string{SheetComponents, SheetRuns} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	verdicts := [][]interface{}{{"Kernel", "Status", "Samples", "Proportion", "Uniformity p", "Uniformity chi2", "Mean p", "Median p", "Reason"}}
	components := [][]interface{}{{"Kernel", "Parameter set", "P-value", "Count", "Passed", "Proportion", "Low", "High", "Uniformity p", "Pass"}}
	for _, v := range res.Verdicts {
		verdicts = append(verdicts, []interface{}{
			v.Kernel.String(), string(v.Status), v.Samples, v.Proportion, v.UniformityPValue,
			v.UniformityStatistic, v.Summary.Mean, v.Summary.Median, string(v.Reason),
		})
		for _, c := range v.Components {
			components = append(components, []interface{}{
				v.Kernel.String(), c.Parameter.String(), c.Name, c.Count, c.Passed,
				c.Proportion, c.Low, c.High, c.UniformityPValue, c.Pass(),
			})
		}
	}

	runs := [][]interface{}{{"Sample", "Kernel", "Parameter set", "Status", "Reason", "P-values", "Detail"}}
	for _, r := range res.Runs {
		if err := ctx.Err(); err != nil {
			return err
		}
		runs = append(runs, []interface{}{
			r.Sample.String(), r.Kernel.String(), r.Parameter.String(), string(r.Status),
			string(r.Reason), formatValues(pValues(r)), r.Detail,
		})
	}

	for sheet, rows := range map[string][][]interface{}{
		SheetVerdicts:   verdicts,
		SheetComponents: components,
		SheetRuns:       runs,
	} {
		if err := writeRows(f, sheet, rows); err != nil {
			return err
		}
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

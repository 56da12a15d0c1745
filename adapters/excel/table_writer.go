package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"popdash/domain/population"
	"popdash/ports"
)

// TableSheet is the worksheet the table is written to.
const TableSheet = "Population"

var tableHeader = []string{"Country", "Population", "Density", "Growth Rate", "Life Expectancy"}

// XLSXWriter exports table rows as a single-sheet workbook.
type XLSXWriter struct{}

var _ ports.TableExporter = XLSXWriter{}

// ContentType returns the XLSX MIME type.
func (XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// WriteTable writes a header, one row per country and leaves missing
// population values blank.
func (XLSXWriter) WriteTable(w io.Writer, year string, rows []population.TableRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TableSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "World population " + year,
		Creator: "popdash",
	}); err != nil {
		return fmt.Errorf("failed to set document properties: %w", err)
	}

	header := make([]interface{}, len(tableHeader))
	for i, h := range tableHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(TableSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(TableSheet, "A1", "E1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var pop interface{}
		if row.Population != nil {
			pop = *row.Population
		}
		values := []interface{}{row.Country, pop, row.Density, row.GrowthRate, row.LifeExpectancy}
		if err := f.SetSheetRow(TableSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(TableSheet, "A", "A", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(TableSheet, "B", "E", 20); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// CSVWriter exports table rows as comma separated values.
type CSVWriter struct{}

var _ ports.TableExporter = CSVWriter{}

// ContentType returns the CSV MIME type.
func (CSVWriter) ContentType() string { return "text/csv" }

// WriteTable writes the same columns as XLSXWriter.
func (CSVWriter) WriteTable(w io.Writer, year string, rows []population.TableRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		pop := ""
		if row.Population != nil {
			pop = strconv.FormatFloat(*row.Population, 'f', -1, 64)
		}
		record := []string{
			row.Country,
			pop,
			strconv.FormatFloat(row.Density, 'f', -1, 64),
			strconv.FormatFloat(row.GrowthRate, 'f', -1, 64),
			strconv.FormatFloat(row.LifeExpectancy, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExporterFor returns the exporter for "xlsx" or "csv".
func ExporterFor(format string) (ports.TableExporter, error) {
	switch format {
	case "xlsx", "":
		return XLSXWriter{}, nil
	case "csv":
		return CSVWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

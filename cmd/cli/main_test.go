package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"popdash/adapters/excel"
	"popdash/domain/population"
	"popdash/internal/store"
)

func TestPrintMetrics(t *testing.T) {
	var buf bytes.Buffer
	printMetrics(&buf, population.DerivedMetrics{
		TotalPopulation:    population.Float(8e9),
		ChangeInPopulation: population.Float(1e8),
	})
	out := buf.String()
	assert.Contains(t, out, "8.00B")
	assert.Contains(t, out, "+100M")
	assert.Contains(t, out, "N/A")
}

func TestPrintTableAndExport(t *testing.T) {
	rows, years := population.BuildTable([]population.Record{
		{Date: "2022", Value: population.Float(7.9e9), Country: population.CountryRef{ID: "1W", Value: "World"}},
	})
	snap := store.Snapshot{TableYear: "2022", TableData: rows, AvailableYears: years}

	var buf bytes.Buffer
	printTable(&buf, snap)
	assert.Contains(t, buf.String(), "World")
	assert.Contains(t, buf.String(), "1 rows for 2022")

	path := filepath.Join(t.TempDir(), "table.xlsx")
	require.NoError(t, exportTable(path, excel.XLSXWriter{}, snap))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(excel.TableSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "World", v)
}

func TestIndicatorsCommand(t *testing.T) {
	cmd := newIndicatorsCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "SP.DYN.LE00.IN")
}

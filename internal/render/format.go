// Package render turns store data into display values: formatted figures
// and PNG charts.
package render

import (
	"fmt"
	"math"

	"popdash/domain/population"
)

// NotAvailable is shown for missing values.
const NotAvailable = "N/A"

// FormatValue formats v for the indicator's unit, e.g. 7.95B, 1.02%,
// 72.31 yrs.
func FormatValue(unit population.Unit, v float64) string {
	switch unit {
	case population.UnitPeople:
		return fmt.Sprintf("%.2fB", v/1e9)
	case population.UnitPercent:
		return fmt.Sprintf("%.2f%%", v)
	case population.UnitYears:
		return fmt.Sprintf("%.2f yrs", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// FormatPtr formats a nullable value, returning NotAvailable for nil.
func FormatPtr(unit population.Unit, v *float64) string {
	if v == nil {
		return NotAvailable
	}
	return FormatValue(unit, *v)
}

// FormatPopulation renders a headcount as billions or millions.
func FormatPopulation(v *float64) string {
	if v == nil {
		return NotAvailable
	}
	abs := math.Abs(*v)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", *v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", *v/1e6)
	default:
		return fmt.Sprintf("%.0f", *v)
	}
}

// FormatRounded renders v with no decimals and an optional suffix.
func FormatRounded(v *float64, suffix string) string {
	if v == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%.0f%s", *v, suffix)
}

// axisTick is the compact y-axis label for the indicator's unit.
func axisTick(unit population.Unit, v float64) string {
	switch unit {
	case population.UnitPeople:
		return fmt.Sprintf("%.2fB", v/1e9)
	case population.UnitPercent:
		return fmt.Sprintf("%g%%", v)
	case population.UnitYears:
		return fmt.Sprintf("%g yrs", v)
	default:
		return fmt.Sprintf("%g", v)
	}
}

// FormatChange renders a population change in signed millions, e.g. +71M.
func FormatChange(v float64) string {
	return fmt.Sprintf("%+.0fM", v/1e6)
}

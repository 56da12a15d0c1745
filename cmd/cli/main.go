package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"popdash/adapters/excel"
	"popdash/domain/population"
	"popdash/internal/config"
	"popdash/internal/container"
	"popdash/internal/render"
	"popdash/internal/store"
	"popdash/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var asJSON bool
	rootCmd := &cobra.Command{
		Use:   "popdash-cli",
		Short: "PopDash CLI for fetching world population indicators",
	}
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print the resulting store snapshot as JSON")

	rootCmd.AddCommand(
		newHomeCmd(&asJSON),
		newSeriesCmd(&asJSON),
		newTableCmd(&asJSON),
		newIndicatorsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withStore builds the container, runs fn and shuts down.
func withStore(ctx context.Context, fn func(*container.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	if err := c.Init(ctx); err != nil {
		return err
	}
	defer c.Shutdown(context.Background())
	return fn(c)
}

func newHomeCmd(asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "home",
		Short: "Fetch the home page headline figures",
		Long: `Fetch world population (2020-2023), population density and life
expectancy (1960-2021) in parallel and print the derived metrics.

Example: popdash-cli home`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(c *container.Container) error {
				if err := c.Store.DispatchHomeFetch(cmd.Context()); err != nil {
					return err
				}
				snap := c.Store.Snapshot()
				if *asJSON {
					return printJSON(cmd.OutOrStdout(), snap)
				}
				printMetrics(cmd.OutOrStdout(), snap.Metrics)
				return nil
			})
		},
	}
}

func newSeriesCmd(asJSON *bool) *cobra.Command {
	var indicator string
	var timeRange int

	cmd := &cobra.Command{
		Use:   "series",
		Short: "Fetch an indicator over the last N years",
		Long: `Fetch one indicator for the world aggregate over the last --range years,
counted back from the reference year (REFERENCE_YEAR, default 2023).

Indicators: "Population", "Growth Rate", "Life Expectancy", "Population Density".
Unknown names fall back to Population.

Example: popdash-cli series --indicator "Life Expectancy" --range 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(c *container.Container) error {
				if err := c.Store.DispatchSeriesFetch(cmd.Context(), indicator, timeRange); err != nil {
					return err
				}
				snap := c.Store.Snapshot()
				if *asJSON {
					return printJSON(cmd.OutOrStdout(), snap)
				}
				printSeries(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&indicator, "indicator", population.LabelPopulation, "Indicator label")
	cmd.Flags().IntVar(&timeRange, "range", 5, "Number of years to fetch")
	return cmd
}

func newTableCmd(asJSON *bool) *cobra.Command {
	var year string
	var xlsxPath string
	var csvPath string

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Fetch the population table for one year",
		Long: `Fetch population for a single year and print one row per record.
Density, growth rate and life expectancy columns are fixed placeholders.

Example: popdash-cli table --year 2022 --xlsx population-2022.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(c *container.Container) error {
				if err := c.Store.DispatchTableFetch(cmd.Context(), year); err != nil {
					return err
				}
				snap := c.Store.Snapshot()

				if xlsxPath != "" {
					if err := exportTable(xlsxPath, excel.XLSXWriter{}, snap); err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", len(snap.TableData), xlsxPath)
				}
				if csvPath != "" {
					if err := exportTable(csvPath, excel.CSVWriter{}, snap); err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", len(snap.TableData), csvPath)
				}

				if *asJSON {
					return printJSON(cmd.OutOrStdout(), snap)
				}
				printTable(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&year, "year", "2023", "Year to fetch")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the table to this XLSX file")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Also write the table to this CSV file")
	return cmd
}

func newIndicatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indicators",
		Short: "List the selectable indicators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LABEL\tCODE\tUNIT")
			for _, info := range population.Indicators() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.Label, info.Code, info.Unit)
			}
			return w.Flush()
		},
	}
}

func exportTable(path string, exporter ports.TableExporter, snap store.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := exporter.WriteTable(f, snap.TableYear, snap.TableData); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMetrics(w io.Writer, m population.DerivedMetrics) {
	change := render.NotAvailable
	if m.ChangeInPopulation != nil {
		change = render.FormatChange(*m.ChangeInPopulation)
	}
	fmt.Fprintf(w, "World population:      %s\n", render.FormatPopulation(m.TotalPopulation))
	fmt.Fprintf(w, "Change in last year:   %s\n", change)
	fmt.Fprintf(w, "Life expectancy:       %s\n", render.FormatRounded(m.LifeExpectancy, " Yrs"))
	fmt.Fprintf(w, "Average density:       %s\n", render.FormatRounded(m.AverageDensity, " p/km²"))
}

func printSeries(w io.Writer, snap store.Snapshot) {
	fmt.Fprintf(w, "%s (%s), last %d years\n", snap.Indicator.Label, snap.Indicator.Code, snap.TimeRange)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, o := range snap.PopulationData {
		fmt.Fprintf(tw, "%s\t%s\n", o.Year, render.FormatPtr(snap.Indicator.Unit, o.Value))
	}
	tw.Flush()

	if s := snap.SeriesSummary; s != nil {
		fmt.Fprintf(w, "\nmean %s, median %s, trend %s/yr, CAGR %.2f%%\n",
			render.FormatValue(snap.Indicator.Unit, s.Mean),
			render.FormatValue(snap.Indicator.Unit, s.Median),
			render.FormatValue(snap.Indicator.Unit, s.TrendPerYear),
			s.GrowthRate)
	}
}

func printTable(w io.Writer, snap store.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNTRY\tPOPULATION\tDENSITY\tGROWTH RATE\tLIFE EXPECTANCY")
	for _, row := range snap.TableData {
		fmt.Fprintf(tw, "%s\t%s\t%.0f\t%.1f\t%.0f Yrs\n",
			row.Country, render.FormatPopulation(row.Population), row.Density, row.GrowthRate, row.LifeExpectancy)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d rows for %s\n", len(snap.TableData), snap.TableYear)
}

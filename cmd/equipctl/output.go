package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/JonMunkholm/chemequip/internal/client"
	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgHiGreen)
	warnColor    = color.New(color.FgHiYellow)
	infoColor    = color.New(color.FgCyan)
)

func (a *app) success(format string, args ...any) {
	successColor.Fprintf(a.stdout, format+"\n", args...)
}

func (a *app) warn(format string, args ...any) {
	warnColor.Fprintf(a.stderr, format+"\n", args...)
}

func (a *app) info(format string, args ...any) {
	infoColor.Fprintf(a.stdout, format+"\n", args...)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printEquipment(w io.Writer, items []core.Equipment) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tTYPE\tFLOWRATE\tPRESSURE\tTEMPERATURE")
	for _, eq := range items {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\n", eq.Name, eq.Type, eq.Flowrate, eq.Pressure, eq.Temperature)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s core.SummaryStatistics) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "METRIC\tAVG\tMIN\tMAX")
	fmt.Fprintf(tw, "Flowrate\t%.2f\t%.2f\t%.2f\n", s.AvgFlowrate, s.MinFlowrate, s.MaxFlowrate)
	fmt.Fprintf(tw, "Pressure\t%.2f\t%.2f\t%.2f\n", s.AvgPressure, s.MinPressure, s.MaxPressure)
	fmt.Fprintf(tw, "Temperature\t%.2f\t%.2f\t%.2f\n", s.AvgTemperature, s.MinTemperature, s.MaxTemperature)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTotal equipment: %d\n", s.TotalCount)
	if len(s.TypeDistribution) == 0 {
		return nil
	}
	tw = newTable(w)
	fmt.Fprintln(tw, "TYPE\tCOUNT")
	for _, t := range slices.Sorted(maps.Keys(s.TypeDistribution)) {
		fmt.Fprintf(tw, "%s\t%d\n", typeLabel(t), s.TypeDistribution[t])
	}
	return tw.Flush()
}

// typeLabel spells out enumerated types and leaves free text as uploaded.
func typeLabel(t string) string {
	if et, ok := core.ClassifyType(t); ok {
		return et.Label()
	}
	return t
}

func printHistory(w io.Writer, uploads []client.Upload) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tFILENAME\tUPLOADED\tRECORDS")
	for _, u := range uploads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", u.ID, u.Filename, u.UploadedAt.Local().Format("2006-01-02 15:04:05"), u.RecordCount)
	}
	return tw.Flush()
}

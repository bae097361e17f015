// MODUL: results
// ZWECK: Formatierung und Export von Benchmark-Ergebnissen
// INPUT: Result Slices
// OUTPUT: Tabellen (Terminal, Markdown) und CSV
// NEBENEFFEKTE: Dateisystem-Schreibzugriff bei ExportCSV
// ABHAENGIGKEITEN: olekukonko/tablewriter, encoding/csv
// HINWEISE: CSV-Export verwendet Semikolon als Trennzeichen fuer DE-Kompatibilitaet

package benchmark

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

var tableHeader = []string{"VARIANT", "SIZE", "BATCH", "CONTEXT", "AVG", "P95", "THROUGHPUT", "MEMORY", "DIM"}

func tableRow(r Result) []string {
	return []string{
		r.Variant,
		r.ImageSize,
		strconv.Itoa(r.BatchSize),
		strconv.FormatBool(r.Conditioned),
		formatDuration(r.AvgLatency),
		formatDuration(r.P95Latency),
		fmt.Sprintf("%.1f img/s", r.Throughput),
		formatBytes(r.MemoryUsed),
		strconv.Itoa(r.OutputDim),
	}
}

// WriteTable schreibt die Ergebnisse als Terminal-Tabelle.
func WriteTable(w io.Writer, results []Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "Keine Ergebnisse vorhanden.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(tableHeader)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	for _, r := range results {
		table.Append(tableRow(r))
	}
	table.Render()
}

// WriteMarkdownTable schreibt die Ergebnisse als Markdown-Tabelle.
func WriteMarkdownTable(w io.Writer, results []Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "_Keine Ergebnisse vorhanden._")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(tableHeader)
	table.SetAutoFormatHeaders(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	for _, r := range results {
		table.Append(tableRow(r))
	}
	table.Render()
}

// ExportCSV exportiert Ergebnisse als CSV-Datei.
func ExportCSV(results []Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv-datei erstellen: %w", err)
	}
	defer f.Close()

	return WriteCSV(f, results)
}

// WriteCSV schreibt Ergebnisse als CSV auf einen Writer.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';' // Semikolon fuer DE-Excel-Kompatibilitaet

	header := []string{
		"variant", "image_size", "batch_size", "conditioned", "iterations",
		"avg_latency_ms", "min_latency_ms", "max_latency_ms", "p95_latency_ms",
		"throughput_img_s", "memory_bytes", "output_dim",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		if err := cw.Write([]string{
			r.Variant,
			r.ImageSize,
			strconv.Itoa(r.BatchSize),
			strconv.FormatBool(r.Conditioned),
			strconv.Itoa(r.Iterations),
			formatMillis(r.AvgLatency),
			formatMillis(r.MinLatency),
			formatMillis(r.MaxLatency),
			formatMillis(r.P95Latency),
			strconv.FormatFloat(r.Throughput, 'f', 2, 64),
			strconv.FormatUint(r.MemoryUsed, 10),
			strconv.Itoa(r.OutputDim),
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SortByThroughput sortiert Ergebnisse nach Durchsatz (absteigend).
func SortByThroughput(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int { return cmp.Compare(b.Throughput, a.Throughput) })
}

// SortByLatency sortiert Ergebnisse nach Latenz (aufsteigend).
func SortByLatency(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int { return cmp.Compare(a.AvgLatency, b.AvgLatency) })
}

// ============================================================================
// Formatierungs-Hilfsfunktionen
// ============================================================================

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 3, 64)
}

// formatDuration formatiert eine Duration fuer menschliche Lesbarkeit.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.2fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// formatBytes formatiert Bytes fuer menschliche Lesbarkeit.
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

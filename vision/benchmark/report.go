// MODUL: report
// ZWECK: Report-Generierung fuer Benchmark-Ergebnisse (JSON, Markdown, Console)
// INPUT: Result Slices, Config
// OUTPUT: Reports mit Systeminfo und Zusammenfassung
// NEBENEFFEKTE: Dateisystem-Schreibzugriff bei ExportJSON
// ABHAENGIGKEITEN: encoding/json, gonum (Mittelwerte)
// HINWEISE: Overhead der Konditionierung = Latenz mit / ohne Kontext

package benchmark

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Report enthaelt alle Benchmark-Ergebnisse mit Metadaten.
type Report struct {
	Timestamp  time.Time  `json:"timestamp"`
	SystemInfo SystemInfo `json:"system_info"`
	Config     Config     `json:"config"`
	Results    []Result   `json:"results"`
	Summary    Summary    `json:"summary"`
}

// SystemInfo enthaelt Systeminformationen zum Benchmark.
type SystemInfo struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCores  int    `json:"cpu_cores"`
	GoVersion string `json:"go_version"`
}

// CurrentSystemInfo liest die Systeminformationen aus runtime.
func CurrentSystemInfo() SystemInfo {
	return SystemInfo{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		CPUCores:  runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}
}

// Summary fasst die wichtigsten Ergebnisse zusammen.
type Summary struct {
	TotalRuns      int     `json:"total_runs"`
	BestThroughput float64 `json:"best_throughput"`
	BestImageSize  string  `json:"best_image_size"`
	BestBatchSize  int     `json:"best_batch_size"`

	// ConditioningOverhead ist das mittlere Latenzverhaeltnis
	// mit/ohne Kontext bei gleicher Groesse und Batch; 0 ohne Paare.
	ConditioningOverhead float64 `json:"conditioning_overhead"`
}

// NewReport erstellt einen neuen Report aus Benchmark-Ergebnissen.
func NewReport(results []Result, config Config, sysInfo SystemInfo) *Report {
	return &Report{
		Timestamp:  time.Now(),
		SystemInfo: sysInfo,
		Config:     config,
		Results:    results,
		Summary:    Summarize(results),
	}
}

// Summarize berechnet die Zusammenfassung.
func Summarize(results []Result) Summary {
	summary := Summary{TotalRuns: len(results)}

	type key struct {
		size  string
		batch int
	}
	plain := make(map[key]Result)
	for _, r := range results {
		if r.Throughput > summary.BestThroughput {
			summary.BestThroughput = r.Throughput
			summary.BestImageSize = r.ImageSize
			summary.BestBatchSize = r.BatchSize
		}
		if !r.Conditioned {
			plain[key{r.ImageSize, r.BatchSize}] = r
		}
	}

	var ratios []float64
	for _, r := range results {
		if !r.Conditioned {
			continue
		}
		if p, ok := plain[key{r.ImageSize, r.BatchSize}]; ok && p.AvgLatency > 0 {
			ratios = append(ratios, float64(r.AvgLatency)/float64(p.AvgLatency))
		}
	}
	if len(ratios) > 0 {
		summary.ConditioningOverhead = stat.Mean(ratios, nil)
	}

	return summary
}

// ExportJSON exportiert den Report als JSON-Datei.
func (r *Report) ExportJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("json-datei erstellen: %w", err)
	}
	defer f.Close()
	return r.WriteJSON(f)
}

// WriteJSON schreibt den Report als JSON auf einen Writer.
func (r *Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// WriteMarkdown schreibt den Report als Markdown.
func (r *Report) WriteMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# FiLM Vision Encoder Benchmark\n\n")
	fmt.Fprintf(w, "**Datum:** %s\n\n", r.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "- **OS:** %s\n- **Architektur:** %s\n- **CPU-Kerne:** %d\n- **Go:** %s\n\n",
		r.SystemInfo.OS, r.SystemInfo.Arch, r.SystemInfo.CPUCores, r.SystemInfo.GoVersion)

	fmt.Fprintf(w, "## Ergebnisse\n\n")
	WriteMarkdownTable(w, r.Results)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "## Zusammenfassung\n\n")
	r.writeSummary(w, "- ")
	return nil
}

// WriteConsole schreibt den Report fuer Konsolen-Ausgabe.
func (r *Report) WriteConsole(w io.Writer) {
	fmt.Fprintf(w, "System: %s/%s, %d CPU-Kerne\n\n", r.SystemInfo.OS, r.SystemInfo.Arch, r.SystemInfo.CPUCores)
	WriteTable(w, r.Results)
	fmt.Fprintln(w)
	r.writeSummary(w, "  ")
}

func (r *Report) writeSummary(w io.Writer, prefix string) {
	fmt.Fprintf(w, "%sBeste Durchsatzrate: %.1f img/s (%s, Batch=%d)\n",
		prefix, r.Summary.BestThroughput, r.Summary.BestImageSize, r.Summary.BestBatchSize)
	if r.Summary.ConditioningOverhead > 0 {
		fmt.Fprintf(w, "%sOverhead Konditionierung: %.2fx\n", prefix, r.Summary.ConditioningOverhead)
	}
	fmt.Fprintf(w, "%sLaeufe: %d\n", prefix, r.Summary.TotalRuns)
}

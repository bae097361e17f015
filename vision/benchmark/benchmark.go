// MODUL: benchmark
// ZWECK: Benchmark-Suite fuer den Encoder mit Latenz-, Durchsatz- und Speichermessung
// INPUT: Encoder, Config
// OUTPUT: Result pro (Bildgroesse, Batch, Konditionierung)
// NEBENEFFEKTE: CPU-Last waehrend Benchmark, Speicherallokation
// ABHAENGIGKEITEN: vision, ml, gonum (Statistik), runtime (Speichermessung)
// HINWEISE: Warmup-Laeufe sind wichtig fuer stabile Messungen

package benchmark

import (
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ollama/filmvision/ml"
	"github.com/ollama/filmvision/vision"
)

// ============================================================================
// Datenstrukturen
// ============================================================================

// Encoder ist die vom Benchmark benoetigte Sicht auf *vision.Encoder.
type Encoder interface {
	Encode(img vision.Image, context *ml.Tensor) (*ml.Tensor, error)
	OutputDim(conditioned bool) int
	Config() vision.Config
}

// Result enthaelt das Ergebnis eines einzelnen Benchmark-Laufs.
type Result struct {
	Variant     string        `json:"variant"`
	ImageSize   string        `json:"image_size"`
	BatchSize   int           `json:"batch_size"`
	Conditioned bool          `json:"conditioned"`
	Iterations  int           `json:"iterations"`
	TotalTime   time.Duration `json:"total_time"`
	AvgLatency  time.Duration `json:"avg_latency"` // pro Bild
	MinLatency  time.Duration `json:"min_latency"`
	MaxLatency  time.Duration `json:"max_latency"`
	P95Latency  time.Duration `json:"p95_latency"`
	Throughput  float64       `json:"throughput"` // Bilder pro Sekunde
	MemoryUsed  uint64        `json:"memory_used"`
	OutputDim   int           `json:"output_dim"`
}

// Config definiert die Parameter fuer einen Benchmark-Lauf.
type Config struct {
	Iterations  int      `json:"iterations"`
	WarmupRuns  int      `json:"warmup_runs"`
	BatchSizes  []int    `json:"batch_sizes"`
	ImageSizes  []string `json:"image_sizes"` // z.B. "224x224"
	Conditioned []bool   `json:"conditioned"`
	Seed        uint64   `json:"seed"`
}

// DefaultConfig gibt eine Standard-Benchmark-Konfiguration zurueck.
func DefaultConfig() Config {
	return Config{
		Iterations:  10,
		WarmupRuns:  2,
		BatchSizes:  []int{1, 4},
		ImageSizes:  []string{"224x224", "320x320"},
		Conditioned: []bool{false, true},
	}
}

// ============================================================================
// Haupt-Benchmark-Funktion
// ============================================================================

// Run fuehrt alle Kombinationen aus ImageSizes, BatchSizes und Conditioned aus.
func Run(enc Encoder, config Config) ([]Result, error) {
	var results []Result

	for _, imageSize := range config.ImageSizes {
		width, height, err := ParseImageSize(imageSize)
		if err != nil {
			return nil, err
		}

		for _, batchSize := range config.BatchSizes {
			batch, err := GenerateTestBatch(width, height, batchSize)
			if err != nil {
				return nil, err
			}

			for _, conditioned := range config.Conditioned {
				var ctx *ml.Tensor
				if conditioned {
					ctx = GenerateContext(batchSize, enc.Config().ContextDim, config.Seed)
				}

				result, err := runSingle(enc, batch, ctx, config)
				if err != nil {
					return nil, fmt.Errorf("%s batch=%d conditioned=%v: %w", imageSize, batchSize, conditioned, err)
				}
				result.ImageSize = imageSize
				results = append(results, result)

				slog.Debug("benchmark", "size", imageSize, "batch", batchSize, "conditioned", conditioned,
					"avg", result.AvgLatency, "throughput", result.Throughput)
			}
		}
	}

	return results, nil
}

// runSingle misst eine Konfiguration.
func runSingle(enc Encoder, batch, ctx *ml.Tensor, config Config) (Result, error) {
	img := vision.Image{Pixels: batch, Layout: vision.LayoutChannelsLast, Range: vision.RangeRawByte}

	for range config.WarmupRuns {
		if _, err := enc.Encode(img, ctx); err != nil {
			return Result{}, err
		}
	}

	runtime.GC()
	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	latencies := make([]float64, 0, config.Iterations)
	for range config.Iterations {
		start := time.Now()
		if _, err := enc.Encode(img, ctx); err != nil {
			return Result{}, err
		}
		latencies = append(latencies, float64(time.Since(start)))
	}

	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	batchSize := batch.Dim(0)
	stats := calculateStats(latencies, batchSize)
	return Result{
		Variant:     enc.Config().Variant,
		BatchSize:   batchSize,
		Conditioned: ctx != nil,
		Iterations:  config.Iterations,
		TotalTime:   stats.total,
		AvgLatency:  stats.avg,
		MinLatency:  stats.min,
		MaxLatency:  stats.max,
		P95Latency:  stats.p95,
		Throughput:  float64(batchSize*config.Iterations) / stats.total.Seconds(),
		MemoryUsed:  memAfter.TotalAlloc - memBefore.TotalAlloc,
		OutputDim:   enc.OutputDim(ctx != nil),
	}, nil
}

// ============================================================================
// Statistik
// ============================================================================

type latencyStats struct {
	total, avg, min, max, p95 time.Duration
}

// calculateStats berechnet Statistiken pro Bild aus Latenzen pro Batch (in ns).
func calculateStats(latencies []float64, batchSize int) latencyStats {
	if len(latencies) == 0 {
		return latencyStats{}
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	perImage := func(ns float64) time.Duration {
		return time.Duration(ns / float64(batchSize))
	}

	return latencyStats{
		total: time.Duration(floats.Sum(sorted)),
		avg:   perImage(stat.Mean(sorted, nil)),
		min:   perImage(sorted[0]),
		max:   perImage(sorted[len(sorted)-1]),
		p95:   perImage(stat.Quantile(0.95, stat.Empirical, sorted, nil)),
	}
}

// ParseImageSize parst einen String wie "224x224" zu width, height.
func ParseImageSize(size string) (int, int, error) {
	var width, height int
	if _, err := fmt.Sscanf(size, "%dx%d", &width, &height); err != nil || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("ungueltige Bildgroesse %q", size)
	}
	return width, height, nil
}

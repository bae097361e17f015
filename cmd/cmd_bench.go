// cmd_bench.go - Bench Command
// Hauptfunktionen: BenchHandler
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ollama/filmvision/vision"
	"github.com/ollama/filmvision/vision/benchmark"
)

// BenchHandler - Misst Latenz und Durchsatz des Encoders
func BenchHandler(cmd *cobra.Command, args []string) error {
	opts, err := encoderOptions(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	config := benchmark.DefaultConfig()
	if config.Iterations, err = flags.GetInt("iterations"); err != nil {
		return err
	}
	if config.WarmupRuns, err = flags.GetInt("warmup"); err != nil {
		return err
	}
	if config.BatchSizes, err = flags.GetIntSlice("batch"); err != nil {
		return err
	}
	if config.ImageSizes, err = flags.GetStringSlice("sizes"); err != nil {
		return err
	}
	config.Seed, _ = flags.GetUint64("seed")

	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	output, err := flags.GetString("output")
	if err != nil {
		return err
	}
	if err := validateBenchConfig(config, format); err != nil {
		return err
	}

	enc, err := vision.NewContext(cmd.Context(), opts...)
	if err != nil {
		return err
	}

	results, err := benchmark.Run(enc, config)
	if err != nil {
		return err
	}
	benchmark.SortByThroughput(results)

	report := benchmark.NewReport(results, config, benchmark.CurrentSystemInfo())
	w := cmd.OutOrStdout()
	switch format {
	case "markdown":
		err = report.WriteMarkdown(w)
	case "csv":
		err = benchmark.WriteCSV(w, results)
	case "json":
		err = report.WriteJSON(w)
	default:
		report.WriteConsole(w)
	}
	if err != nil {
		return err
	}

	if output != "" {
		if strings.HasSuffix(output, ".json") {
			err = report.ExportJSON(output)
		} else {
			err = benchmark.ExportCSV(results, output)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Ergebnisse gespeichert: %s\n", output)
	}

	return nil
}

// validateBenchConfig - Prueft die Benchmark-Parameter vor dem Laden des Modells
func validateBenchConfig(config benchmark.Config, format string) error {
	if config.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", config.Iterations)
	}
	if config.WarmupRuns < 0 {
		return fmt.Errorf("warmup must not be negative, got %d", config.WarmupRuns)
	}
	for _, b := range config.BatchSizes {
		if b <= 0 {
			return fmt.Errorf("invalid batch size %d", b)
		}
	}
	for _, s := range config.ImageSizes {
		if _, _, err := benchmark.ParseImageSize(s); err != nil {
			return err
		}
	}
	switch format {
	case "table", "markdown", "csv", "json":
		return nil
	default:
		return fmt.Errorf("unknown format %q (table, markdown, csv, json)", format)
	}
}

// newBenchCmd - Erstellt den bench Command
func newBenchCmd() *cobra.Command {
	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the encoder on synthetic images",
		Args:  cobra.NoArgs,
		RunE:  BenchHandler,
	}

	addEncoderFlags(benchCmd)
	benchCmd.Flags().Int("iterations", 10, "Measured iterations per configuration")
	benchCmd.Flags().Int("warmup", 2, "Warmup runs per configuration")
	benchCmd.Flags().IntSlice("batch", []int{1, 4}, "Batch sizes")
	benchCmd.Flags().StringSlice("sizes", []string{"224x224"}, "Image sizes (WxH)")
	benchCmd.Flags().String("format", "table", "Output format (table, markdown, csv, json)")
	benchCmd.Flags().String("output", "", "Also write results to a .csv or .json file")

	return benchCmd
}

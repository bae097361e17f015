// cmd_weights.go - init-weights Command
// Hauptfunktionen: InitWeightsHandler
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ollama/filmvision/ml"
	"github.com/ollama/filmvision/vision"
)

// InitWeightsHandler - Schreibt frisch initialisierte Gewichte als GGUF
//
// Ohne --output landet die Datei unter <models>/<backbone>.gguf und wird
// danach von "encode" mit der Policy DEFAULT gefunden.
func InitWeightsHandler(cmd *cobra.Command, args []string) error {
	opts, err := encoderOptions(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		opts = append(opts, vision.WithVariant(args[0]))
	}
	opts = append(opts, vision.WithWeights(vision.WeightsNone))

	enc, err := vision.NewContext(cmd.Context(), opts...)
	if err != nil {
		return err
	}

	f16, err := cmd.Flags().GetBool("f16")
	if err != nil {
		return err
	}
	dtype := ml.DTypeF32
	if f16 {
		dtype = ml.DTypeF16
	}

	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if output == "" {
		models, err := cmd.Flags().GetString("models")
		if err != nil {
			return err
		}
		output = filepath.Join(models, enc.Backbone().Name()+".gguf")
	}

	if err := enc.SaveWeights(output, dtype); err != nil {
		return err
	}

	slog.Debug("weights written", "path", output, "dtype", dtype, "variant", enc.Config().Variant)
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

// newInitWeightsCmd - Erstellt den init-weights Command
func newInitWeightsCmd() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init-weights [VARIANT]",
		Short: "Write freshly initialized weights to a GGUF file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  InitWeightsHandler,
	}

	addEncoderFlags(initCmd)
	initCmd.Flags().StringP("output", "o", "", "Output file (default <models>/<backbone>.gguf)")
	initCmd.Flags().Bool("f16", false, "Store tensors as float16")

	return initCmd
}

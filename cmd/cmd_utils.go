// cmd_utils.go - Gemeinsame Hilfsfunktionen
// Hauptfunktionen: addEncoderFlags, encoderOptions, loadImages, loadContext
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ollama/filmvision/envconfig"
	"github.com/ollama/filmvision/ml"
	"github.com/ollama/filmvision/vision"
)

// addEncoderFlags - Registriert die Encoder-Flags; Defaults kommen aus FILMVISION_*
func addEncoderFlags(cmd *cobra.Command) {
	env := vision.ConfigFromEnv()

	cmd.Flags().String("variant", env.Variant, "Backbone variant (b0..b7)")
	cmd.Flags().String("weights", string(env.Weights), "Weights policy: DEFAULT, IMAGENET1K_V1 or NONE")
	cmd.Flags().String("weights-path", "", "Explicit GGUF weights file")
	cmd.Flags().String("models", envconfig.Models(), "Directory searched for <backbone>.gguf")
	cmd.Flags().Int("context-dim", env.ContextDim, "Width of the context vector")
	cmd.Flags().Uint64("seed", env.Seed, "Seed for weights that are not loaded from a file")
	cmd.Flags().Bool("pooling", env.Pooling, "Average pool before flattening")
	cmd.Flags().Bool("include-top", false, "Keep the classification head (1000 logits)")
	cmd.Flags().String("transform-config", "", "preprocessor_config.json overriding the preset transform")
}

// encoderOptions - Liest die Encoder-Flags in vision.Options
func encoderOptions(cmd *cobra.Command) ([]vision.Option, error) {
	flags := cmd.Flags()

	variant, err := flags.GetString("variant")
	if err != nil {
		return nil, err
	}
	weights, err := flags.GetString("weights")
	if err != nil {
		return nil, err
	}
	weightsPath, err := flags.GetString("weights-path")
	if err != nil {
		return nil, err
	}
	models, err := flags.GetString("models")
	if err != nil {
		return nil, err
	}
	contextDim, err := flags.GetInt("context-dim")
	if err != nil {
		return nil, err
	}
	seed, err := flags.GetUint64("seed")
	if err != nil {
		return nil, err
	}
	pooling, err := flags.GetBool("pooling")
	if err != nil {
		return nil, err
	}
	includeTop, err := flags.GetBool("include-top")
	if err != nil {
		return nil, err
	}
	transformConfig, err := flags.GetString("transform-config")
	if err != nil {
		return nil, err
	}

	opts := []vision.Option{
		vision.WithVariant(variant),
		vision.WithWeights(vision.WeightsPolicy(weights)),
		vision.WithWeightsPath(weightsPath),
		vision.WithModelsDir(models),
		vision.WithContextDim(contextDim),
		vision.WithSeed(seed),
		vision.WithPooling(pooling),
		vision.WithIncludeTop(includeTop),
		vision.WithLogger(slog.Default()),
	}
	if transformConfig != "" {
		opts = append(opts, vision.WithTransformConfig(transformConfig))
	}
	return opts, nil
}

// loadImages - Dekodiert alle Bilder parallel zu (H, W, 3) Tensoren mit Rohwerten
func loadImages(ctx context.Context, paths []string) ([]*ml.Tensor, error) {
	tensors := make([]*ml.Tensor, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := vision.LoadImage(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			tensors[i] = vision.ImageToTensor(vision.Composite(img))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tensors, nil
}

// loadContext - Liest Kontextvektoren aus JSON
//
// Erlaubt ist ein einzelner Vektor [..] (fuer alle Bilder) oder eine Matrix
// [[..], ..] mit genau einer Zeile pro Bild. Ergebnis: ein (1, D) Tensor pro Bild.
func loadContext(path string, n int) ([]*ml.Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows [][]float32
	if err := json.Unmarshal(data, &rows); err != nil {
		var row []float32
		if err2 := json.Unmarshal(data, &row); err2 != nil {
			return nil, fmt.Errorf("context %s: expected a vector or a matrix: %w", path, err)
		}
		rows = make([][]float32, n)
		for i := range rows {
			rows[i] = row
		}
	}

	if len(rows) != n {
		return nil, fmt.Errorf("context %s: %d rows for %d images", path, len(rows), n)
	}

	out := make([]*ml.Tensor, n)
	for i, row := range rows {
		t, err := ml.FromFloats(row, 1, len(row))
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

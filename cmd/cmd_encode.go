// cmd_encode.go - Encode Command
// Hauptfunktionen: EncodeHandler, encodeImages, writeEmbeddings
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/ollama/filmvision/ml"
	"github.com/ollama/filmvision/vision"
)

// embedding - Ein Eintrag der JSON-Ausgabe
type embedding struct {
	Image     string    `json:"image"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
}

// EncodeHandler - Berechnet Feature-Vektoren fuer alle uebergebenen Bilder
func EncodeHandler(cmd *cobra.Command, args []string) error {
	opts, err := encoderOptions(cmd)
	if err != nil {
		return err
	}

	contextPath, err := cmd.Flags().GetString("context")
	if err != nil {
		return err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "json" && format != "dump" {
		return fmt.Errorf("unknown format %q (json, dump)", format)
	}

	var conds []*ml.Tensor
	if contextPath != "" {
		if conds, err = loadContext(contextPath, len(args)); err != nil {
			return err
		}
	}

	enc, err := vision.NewContext(cmd.Context(), opts...)
	if err != nil {
		return err
	}

	images, err := loadImages(cmd.Context(), args)
	if err != nil {
		return err
	}

	out, err := encodeImages(cmd.Context(), enc, images, conds)
	if err != nil {
		return err
	}

	return writeEmbeddings(cmd.OutOrStdout(), args, out, format)
}

// encodeImages - Kodiert jedes Bild einzeln; der Encoder ist nebenlaeufig nutzbar
func encodeImages(ctx context.Context, enc *vision.Encoder, images, conds []*ml.Tensor) ([]*ml.Tensor, error) {
	out := make([]*ml.Tensor, len(images))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, img := range images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var cond *ml.Tensor
			if conds != nil {
				cond = conds[i]
			}

			y, err := enc.Encode(vision.Image{Pixels: img, Layout: vision.LayoutChannelsLast, Range: vision.RangeRawByte}, cond)
			if err != nil {
				return err
			}
			out[i] = y
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// writeEmbeddings - Gibt die Ergebnisse als JSON oder Tensor-Dump aus
func writeEmbeddings(w io.Writer, paths []string, out []*ml.Tensor, format string) error {
	if format == "dump" {
		for i, t := range out {
			fmt.Fprintf(w, "%s %v\n%s\n", paths[i], t.Shape(), ml.Dump(t, ml.DumpWithPrecision(4)))
		}
		return nil
	}

	entries := make([]embedding, len(out))
	for i, t := range out {
		entries[i] = embedding{Image: paths[i], Dim: t.Dim(-1), Embedding: t.Floats()}
	}

	encoder := json.NewEncoder(w)
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(entries)
}

// newEncodeCmd - Erstellt den encode Command
func newEncodeCmd() *cobra.Command {
	encodeCmd := &cobra.Command{
		Use:   "encode IMAGE [IMAGE...]",
		Short: "Encode images into feature vectors",
		Args:  cobra.MinimumNArgs(1),
		RunE:  EncodeHandler,
	}

	addEncoderFlags(encodeCmd)
	encodeCmd.Flags().String("context", "", "JSON file with a context vector or one row per image")
	encodeCmd.Flags().String("format", "json", "Output format (json, dump)")

	return encodeCmd
}

// cmd_variants.go - Variants und Show Commands
// Hauptfunktionen: VariantsHandler, ShowHandler
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ollama/filmvision/envconfig"
	"github.com/ollama/filmvision/fs/gguf"
	"github.com/ollama/filmvision/vision/efficientnet"
)

// newTable - Tabelle im Stil von "list"
func newTable(cmd *cobra.Command, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// VariantsHandler - Listet alle EfficientNet-Varianten mit Gewichtsstatus auf
func VariantsHandler(cmd *cobra.Command, args []string) error {
	models, err := cmd.Flags().GetString("models")
	if err != nil {
		return err
	}

	var data [][]string
	for _, v := range efficientnet.Variants() {
		name := efficientnet.NamePrefix + v.Name

		weights := "-"
		if _, err := os.Stat(filepath.Join(models, name+".gguf")); err == nil {
			weights = name + ".gguf"
		}

		data = append(data, []string{
			v.Name,
			strconv.FormatFloat(v.Width, 'f', 1, 64),
			strconv.FormatFloat(v.Depth, 'f', 1, 64),
			fmt.Sprintf("%d/%d", v.Resize, v.Crop),
			strconv.Itoa(v.OutputDim()),
			weights,
		})
	}

	table := newTable(cmd, []string{"VARIANT", "WIDTH", "DEPTH", "RESIZE/CROP", "FEATURES", "WEIGHTS"})
	table.AppendBulk(data)
	table.Render()

	return nil
}

// ShowHandler - Zeigt Metadaten und Tensoren einer Gewichtsdatei
func ShowHandler(cmd *cobra.Command, args []string) error {
	f, err := gguf.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	tensors, err := cmd.Flags().GetBool("tensors")
	if err != nil {
		return err
	}

	var data [][]string
	for _, kv := range f.KeyValues() {
		data = append(data, []string{kv.Key, fmt.Sprint(kv.Value.Any())})
	}

	table := newTable(cmd, []string{"KEY", "VALUE"})
	table.AppendBulk(data)
	table.Render()

	if !tensors {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d tensors\n", f.NumTensors())
		return nil
	}

	data = data[:0]
	for _, ti := range f.TensorInfos() {
		dims := make([]string, 0, len(ti.Shape))
		for _, d := range ti.Dims() {
			dims = append(dims, strconv.Itoa(d))
		}
		data = append(data, []string{ti.Name, ti.Type.String(), strings.Join(dims, "x")})
	}

	fmt.Fprintln(cmd.OutOrStdout())
	table = newTable(cmd, []string{"TENSOR", "TYPE", "SHAPE"})
	table.AppendBulk(data)
	table.Render()

	return nil
}

// newVariantsCmd - Erstellt den variants Command
func newVariantsCmd() *cobra.Command {
	variantsCmd := &cobra.Command{
		Use:     "variants",
		Aliases: []string{"ls"},
		Short:   "List backbone variants",
		Args:    cobra.NoArgs,
		RunE:    VariantsHandler,
	}
	variantsCmd.Flags().String("models", envconfig.Models(), "Directory searched for <backbone>.gguf")
	return variantsCmd
}

// newShowCmd - Erstellt den show Command
func newShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Show metadata of a weights file",
		Args:  cobra.ExactArgs(1),
		RunE:  ShowHandler,
	}
	showCmd.Flags().Bool("tensors", false, "List all tensors")
	return showCmd
}

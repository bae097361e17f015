// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ollama/filmvision/envconfig"

	// registriert efficientnet_b0..b7 in vision.DefaultRegistry
	_ "github.com/ollama/filmvision/vision/efficientnet"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "filmvision",
		Short:         "FiLM-conditioned EfficientNet image encoder",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	// Commands erstellen
	encodeCmd := newEncodeCmd()
	variantsCmd := newVariantsCmd()
	initWeightsCmd := newInitWeightsCmd()
	showCmd := newShowCmd()
	benchCmd := newBenchCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	modelEnvs := []envconfig.EnvVar{
		envVars["FILMVISION_DEBUG"],
		envVars["FILMVISION_MODELS"],
		envVars["FILMVISION_VARIANT"],
		envVars["FILMVISION_WEIGHTS"],
		envVars["FILMVISION_POOLING"],
		envVars["FILMVISION_CONTEXT_DIM"],
		envVars["FILMVISION_SEED"],
	}

	for _, cmd := range []*cobra.Command{
		encodeCmd,
		variantsCmd,
		initWeightsCmd,
		showCmd,
		benchCmd,
	} {
		switch cmd {
		case variantsCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["FILMVISION_MODELS"]})
		case showCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["FILMVISION_DEBUG"]})
		default:
			appendEnvDocs(cmd, modelEnvs)
		}
	}

	rootCmd.AddCommand(
		encodeCmd,
		variantsCmd,
		initWeightsCmd,
		showCmd,
		benchCmd,
	)

	return rootCmd
}

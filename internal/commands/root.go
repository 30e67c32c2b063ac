package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matrix-org/batesian"
	"github.com/matrix-org/batesian/internal/config"
)

// RootCmd creates and returns the root command for the batesian CLI.
// Running it without a subcommand builds a document.
func RootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "batesian [file]",
		Short: "Render a document template from units and sections",
		Long: `Processes a file (typically .rst) through a template to replace templated
areas with section information from the selected input. The result is written
under the same name to the output directory.

For a list of possible template variables, add --show-template-vars.`,
		Version:       batesian.Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args, configPath)
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Turn on verbose mode")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "Config file")

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Input to build from: a name declared in the config file, a registered input, or a file-set directory")
	flags.StringP("out-directory", "o", "out", "The directory to output the file to")
	flags.BoolP("show-template-vars", "s", false, "Show a list of all possible variables (sections) you can use in the input file")
	flags.String("release_label", "", "Release label of the API")
	flags.Bool("dry-run", false, "Report the file that would be written without writing it")

	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the batesian version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "batesian %s\n", batesian.Version)
		},
	}
}

// Package main provides the lcfit CLI: BSM fitting and ML branch-length
// estimation over YAML documents.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	app := &app{}

	rootCmd := &cobra.Command{
		Use:   "lcfit",
		Short: "Fit likelihood curves of phylogenetic branch lengths",
		Long: `lcfit fits the binary symmetric model (BSM) to log-likelihood samples
and estimates maximum-likelihood branch lengths.

Every command reads one YAML document from the file given as argument
("-" for stdin) and writes a YAML document to stdout or --output.

Commands:
  fit           Fit a BSM to samples
  rescale       Rescale a BSM through a sample
  scale-factor  Scale factor of a BSM through a sample
  ml-t          Maximizer of a BSM
  estimate      Iterative ML estimation against a target curve
  bsm2          BSM2 auto-fit against a target curve
  kl            KL divergence between two log-likelihood profiles`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "config file (default: .lcfit.yaml in CWD or $HOME)")
	rootCmd.PersistentFlags().StringVarP(&app.output, "output", "o", "", "output file (default: stdout)")

	rootCmd.AddCommand(
		fitCmd(app),
		rescaleCmd(app),
		scaleFactorCmd(app),
		mlTCmd(app),
		estimateCmd(app),
		bsm2Cmd(app),
		klCmd(app),
	)

	return rootCmd
}

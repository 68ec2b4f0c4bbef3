package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexmocap/rigcore/internal/topology"
)

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a template between the key-value and CSV formats",
	Long: `Convert a template between the key-value (.ini/.cfg) and tabular (.csv)
formats. The format of each side follows its file extension; offsets keep the
unit of the input.

Example:
  mocaprig convert body.ini body.csv`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		top, err := topology.Load(args[0])
		if err != nil {
			return err
		}
		if err := top.Validate(); err != nil {
			return err
		}
		if err := topology.Save(args[1], top); err != nil {
			return err
		}
		rt.logger.Info("Template converted", "from", args[0], "to", args[1], "joints", top.Len())
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d joints)\n", args[1], top.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

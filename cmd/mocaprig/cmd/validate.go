package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexmocap/rigcore/internal/topology"
)

var validateCmd = &cobra.Command{
	Use:   "validate <template>",
	Short: "Load a template and check its hierarchy",
	Long: `Load a template and check names, parent links, the single root and
acyclicity.

Example:
  mocaprig validate body.ini`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		top, err := topology.Load(args[0])
		if err != nil {
			return err
		}
		if err := top.Validate(); err != nil {
			return err
		}
		root, _ := top.Root()
		rt.session.SetTopology(top, args[0])
		rt.logger.Info("Template valid", "joints", top.Len(), "root", root)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d joints, root %s, unit %s\n", args[0], top.Len(), root, top.Unit)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexmocap/rigcore/internal/estimate"
	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/rig"
	"github.com/flexmocap/rigcore/internal/topology"
)

var estimateOffsetsPath string

var estimateCmd = &cobra.Command{
	Use:   "estimate <template> <frame.csv>",
	Short: "Estimate joint positions from a reference frame",
	Long: `Estimate every joint's world position as the centroid of its estimator
markers and print the parent-relative offsets in centimeters.

Example:
  mocaprig estimate body.ini tpose.csv --offsets actor01_offsets.csv`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		top, err := topology.Load(args[0])
		if err != nil {
			return err
		}
		frame, err := marker.LoadFrame(args[1], rt.convention())
		if err != nil {
			return err
		}
		rt.session.SetTopology(top, args[0])
		rt.session.SetFrame(frame)

		opts, err := rig.OptionsFromConfig()
		if err != nil {
			return err
		}
		est := &estimate.Estimator{
			Strategy:   estimate.Centroid{},
			RootAnchor: opts.RootAnchor,
			Floor:      opts.Floor,
			Logger:     rt.logger,
		}
		world, err := est.Estimate(top, frame)
		if err != nil {
			return err
		}
		offsets := estimate.ToRelativeOffsets(world, top)

		var rows [][]string
		for _, name := range top.Names() {
			off, ok := offsets[name]
			if !ok {
				continue
			}
			rows = append(rows, append([]string{name}, vecCells(off)...))
		}
		printTable(cmd.OutOrStdout(), []string{"Joint", "X", "Y", "Z"}, rows)

		if estimateOffsetsPath != "" {
			if err := topology.SaveOffsets(estimateOffsetsPath, offsets); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", estimateOffsetsPath)
		}
		return nil
	},
}

func init() {
	estimateCmd.Flags().StringVarP(&estimateOffsetsPath, "offsets", "o", "", "write relative offsets (centimeters) to this CSV file")
	rootCmd.AddCommand(estimateCmd)
}

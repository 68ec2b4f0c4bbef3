package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/internal/fit"
	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/util"
)

var fitProfilePath string

var fitCmd = &cobra.Command{
	Use:   "fit <frame.csv>",
	Short: "Measure a performer against a reference body profile",
	Long: `Measure height and arm lengths from a T-pose frame and print the scale
factors and rotation offsets that fit the reference rig to the performer.

Example:
  mocaprig fit tpose.csv --profile adult.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := marker.LoadFrame(args[0], rt.convention())
		if err != nil {
			return err
		}
		rt.session.SetFrame(frame)

		profile := fit.DefaultProfile()
		path := fitProfilePath
		if path == "" {
			path = config.GetFitConfig().ProfilePath
		}
		if path != "" {
			if profile, err = fit.LoadProfile(path); err != nil {
				return err
			}
		}
		fitter := fit.New(profile, rt.logger)
		fitter.MinMarkers = config.GetMarkerConfig().Minimum
		res, err := fitter.Fit(frame)
		if err != nil {
			rt.metrics.Failed(cmd.Context(), "fit")
			return err
		}
		rt.metrics.Fitted(cmd.Context(), "")

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "height %s, left arm %s, right arm %s (group error %s)\n",
			util.FormatFloat(res.Height), util.FormatFloat(res.LeftArmLength),
			util.FormatFloat(res.RightArmLength), util.FormatFloat(res.GroupError()))

		names := make([]string, 0, len(res.Scales)+len(res.Rotations))
		for n := range res.Scales {
			names = append(names, n)
		}
		for n := range res.Rotations {
			if _, ok := res.Scales[n]; !ok {
				names = append(names, n)
			}
		}
		slices.Sort(names)

		var rows [][]string
		for _, n := range names {
			row := []string{n, "", ""}
			if s, ok := res.Scales[n]; ok {
				row[1] = util.FormatFloat(s.X)
			}
			if r, ok := res.Rotations[n]; ok {
				row[2] = fmt.Sprintf("%s,%s,%s", util.FormatFloat(r.X), util.FormatFloat(r.Y), util.FormatFloat(r.Z))
			}
			rows = append(rows, row)
		}
		printTable(out, []string{"Joint", "Scale", "Rotation (deg)"}, rows)
		return nil
	},
}

func init() {
	fitCmd.Flags().StringVarP(&fitProfilePath, "profile", "p", "", "YAML reference body profile (built-in when empty)")
	rootCmd.AddCommand(fitCmd)
}

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/flexmocap/rigcore/internal/mapping"
	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/rig"
	"github.com/flexmocap/rigcore/internal/scene"
	"github.com/flexmocap/rigcore/internal/scene/memscene"
	"github.com/flexmocap/rigcore/internal/topology"
)

type setupOptions struct {
	namespace    string
	predicted    string
	labels       string
	offsets      string
	usePredicted bool
	skipFit      bool
	zeroRotation string
	snapMarkers  bool
	saveTemplate string
}

var setupFlags = setupOptions{namespace: "actor"}

var setupCmd = &cobra.Command{
	Use:   "setup <template> <frame.csv>",
	Short: "Run the full rigging pipeline on a reference frame",
	Long: `Estimate joints, build the skeleton, fit it to the performer,
characterize it and bind the marker drivers, then print the installed mapping.
The session is recorded through the configured storage backend.

Example:
  mocaprig setup body.ini tpose.csv --namespace actor01
  mocaprig setup body.csv tpose.csv --predicted solved.csv --use-predicted
  mocaprig setup body.ini tpose.csv --zero-rotation Spine --save-template actor01.csv`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		conv := rt.convention()

		top, err := topology.Load(args[0])
		if err != nil {
			return err
		}
		if err := top.Validate(); err != nil {
			return err
		}
		if setupFlags.offsets != "" {
			offsets, err := topology.LoadOffsets(setupFlags.offsets)
			if err != nil {
				return err
			}
			if unknown := top.ApplyOffsets(toTemplateUnit(top, offsets)); len(unknown) > 0 {
				rt.logger.Warn("Offsets for unknown joints ignored", "joints", unknown)
			}
		}
		frame, err := marker.LoadFrame(args[1], conv)
		if err != nil {
			return err
		}
		rt.session.SetTopology(top, args[0])

		host := memscene.New()
		sources, err := loadSources(host, frame, conv)
		if err != nil {
			return err
		}

		opts, err := rig.OptionsFromConfig()
		if err != nil {
			return err
		}
		opts.SkipFit = setupFlags.skipFit
		opts.UsePredicted = opts.UsePredicted || setupFlags.usePredicted

		backend, err := rt.storage()
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, backend.Close())
		}()

		engine := rig.New(host, rt.session, opts,
			rig.WithStorage(backend),
			rig.WithMetrics(rt.metrics),
			rig.WithInflux(rt.influx(ctx)),
			rig.WithLogger(rt.logger),
		)
		if err := engine.Start(); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, engine.Stop())
		}()

		res, err := engine.Setup(ctx, setupFlags.namespace, frame, sources)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d joints, %s markers\n", res.Skeleton.Namespace, res.Skeleton.Len(), res.Mapping.Source)
		var rows [][]string
		for _, b := range res.Mapping.Bindings {
			rows = append(rows, []string{b.Joint, strings.Join(b.Markers, " "), b.Kind.String()})
		}
		printTable(out, []string{"Joint", "Markers", "Constraint"}, rows)
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		return finishSetup(out, engine, sources)
	},
}

// finishSetup applies the post-build flags to the current skeleton.
func finishSetup(out io.Writer, engine *rig.Engine, sources mapping.Sources) error {
	if setupFlags.zeroRotation != "" {
		n, err := engine.ZeroRotation("", setupFlags.zeroRotation)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "zeroed rotation of %d joints below %s\n", n, setupFlags.zeroRotation)
	}
	if setupFlags.snapMarkers {
		moved, err := engine.SnapMarkers("", sources.Optical)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "snapped %d markers to dummies\n", len(moved))
	}
	if setupFlags.saveTemplate != "" {
		top, err := engine.Introspect("")
		if err != nil {
			return err
		}
		if err := topology.Save(setupFlags.saveTemplate, top); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s (%d joints)\n", setupFlags.saveTemplate, top.Len())
	}
	return nil
}

// loadSources puts the frame into the host as optical markers, applies the
// label file and loads the predicted markers when given.
func loadSources(host *memscene.Scene, frame *marker.Frame, conv marker.Convention) (mapping.Sources, error) {
	var src mapping.Sources
	group, err := host.LoadSamples("optical", frame.Samples())
	if err != nil {
		return src, err
	}
	src.Optical = marker.Discover(group, scene.KindMarker, conv)
	if setupFlags.labels != "" {
		labels, err := marker.ReadLabels(setupFlags.labels)
		if err != nil {
			return src, err
		}
		if err := marker.Rename(src.Optical, labels); err != nil {
			return src, err
		}
		src.Optical = marker.Discover(group, scene.KindMarker, conv)
	}

	if setupFlags.predicted != "" {
		pf, err := marker.LoadFrame(setupFlags.predicted, conv)
		if err != nil {
			return src, err
		}
		pg, err := host.AddGroup(nil, "predicted")
		if err != nil {
			return src, err
		}
		for _, s := range pf.Samples() {
			if _, err := host.AddMarker(pg, s.ID, scene.KindPredictedMarker, s.Position); err != nil {
				return src, err
			}
		}
		src.Predicted = marker.Discover(pg, scene.KindPredictedMarker, conv)
	}
	return src, nil
}

// toTemplateUnit converts offsets in centimeters to the unit of top.
func toTemplateUnit(top *topology.Topology, offsets map[string]r3.Vec) map[string]r3.Vec {
	out := make(map[string]r3.Vec, len(offsets))
	for name, v := range offsets {
		out[name] = r3.Vec{
			X: top.Unit.FromCentimeters(v.X),
			Y: top.Unit.FromCentimeters(v.Y),
			Z: top.Unit.FromCentimeters(v.Z),
		}
	}
	return out
}

func init() {
	f := setupCmd.Flags()
	f.StringVarP(&setupFlags.namespace, "namespace", "n", "actor", "namespace of the built skeleton")
	f.StringVar(&setupFlags.predicted, "predicted", "", "CSV frame of predicted markers")
	f.StringVar(&setupFlags.labels, "labels", "", "label file renaming the optical markers in dense order")
	f.StringVar(&setupFlags.offsets, "offsets", "", "offsets CSV (centimeters) replacing template defaults")
	f.BoolVar(&setupFlags.usePredicted, "use-predicted", false, "bind predicted instead of optical markers")
	f.BoolVar(&setupFlags.skipFit, "skip-fit", false, "do not scale or rotate joints to the performer")
	f.StringVar(&setupFlags.zeroRotation, "zero-rotation", "", "reset the rotation of this joint and its descendants")
	f.BoolVar(&setupFlags.snapMarkers, "snap-markers", false, "move optical markers onto same-named marker dummies")
	f.StringVar(&setupFlags.saveTemplate, "save-template", "", "write the fitted skeleton back as a template")
	rootCmd.AddCommand(setupCmd)
}

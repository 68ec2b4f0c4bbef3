package marker

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/scene"
	"github.com/flexmocap/rigcore/internal/util"
	"github.com/flexmocap/rigcore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// ReadSamples parses "id,x,y,z" rows. A first row whose x column is not a
// number is taken as a header.
func ReadSamples(r io.Reader) ([]core.MarkerSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	var out []core.MarkerSample
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", rigerr.ErrMalformed, err)
		}
		x, errX := strconv.ParseFloat(rec[1], 64)
		if errX != nil && line == 1 {
			continue
		}
		y, errY := strconv.ParseFloat(rec[2], 64)
		z, errZ := strconv.ParseFloat(rec[3], 64)
		if err := errors.Join(errX, errY, errZ); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", rigerr.ErrMalformed, line, err)
		}
		out = append(out, core.MarkerSample{ID: util.TrimQuotes(rec[0]), Position: r3.Vec{X: x, Y: y, Z: z}})
	}
	return out, nil
}

// LoadFrame reads a marker frame file.
func LoadFrame(path string, conv Convention) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rigerr.ReadFailed(path, err)
	}
	defer f.Close()

	samples, err := ReadSamples(f)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", path, err)
	}
	return NewFrame(samples, conv)
}

// ReadLabels reads one marker label per line. Blank lines are ignored and
// surrounding double quotes are trimmed.
func ReadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rigerr.ReadFailed(path, err)
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		label := util.TrimQuotes(strings.TrimSpace(sc.Text()))
		if label != "" {
			labels = append(labels, label)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, rigerr.ReadFailed(path, err)
	}
	return labels, nil
}

// Rename relabels the markers of l in dense order. The label count must match
// the marker count. Labels gain the label prefix so they stay discoverable.
// On failure every marker keeps its previous name; l must be rediscovered
// after a successful call.
func Rename(l *List, labels []string) error {
	nodes := l.Nodes()
	if len(labels) != len(nodes) {
		return rigerr.Precondition(rigerr.ErrInsufficientMarkers,
			fmt.Sprintf("%d labels for %d markers", len(labels), len(nodes)))
	}
	final := make([]string, len(labels))
	seen := make(map[string]bool, len(labels))
	for i, label := range labels {
		name := label
		if !strings.HasPrefix(name, l.conv.LabelPrefix) {
			name = l.conv.LabelPrefix + name
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate label %q", rigerr.ErrMalformed, label)
		}
		seen[name] = true
		final[i] = name
	}

	old := make([]string, len(nodes))
	for i, n := range nodes {
		old[i] = n.Name()
	}
	restore := func(upto int) {
		for i := upto - 1; i >= 0; i-- {
			_ = nodes[i].Rename(old[i])
		}
	}
	// two phases so a label may take a name another marker still holds
	for i, n := range nodes {
		if err := n.Rename(fmt.Sprintf("__relabel_%d_%s", i, old[i])); err != nil {
			restore(i)
			return err
		}
	}
	for i, n := range nodes {
		if err := n.Rename(final[i]); err != nil {
			for j := range nodes {
				_ = nodes[j].Rename(fmt.Sprintf("__relabel_%d_%s", j, old[j]))
			}
			restore(len(nodes))
			return err
		}
	}
	return nil
}

// MoveTo moves every marker of l onto the world position of the same-named
// marker dummy in the skeleton namespace ns. It returns the moved names.
func MoveTo(host scene.Host, ns string, l *List) ([]string, error) {
	if !host.NamespaceExists(ns) {
		return nil, rigerr.Precondition(rigerr.ErrNamespaceMissing, ns)
	}
	var moved []string
	for _, m := range l.Nodes() {
		dummy, ok := host.FindByLabel(scene.Label(ns, m.Name()))
		if !ok || !dummy.IsMarkerDummy() {
			continue
		}
		target := dummy.WorldPosition()
		if p := m.Parent(); p != nil {
			target = r3.Sub(target, p.WorldPosition())
		}
		m.SetTranslation(target)
		moved = append(moved, m.Name())
	}
	return moved, nil
}

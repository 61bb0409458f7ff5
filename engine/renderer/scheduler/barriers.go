package scheduler

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
)

// barrierTracker remembers what the frame has written so far. A read of a written resource
// is ordered after the write with one barrier, which also settles every other pending write
// of the same resources.
type barrierTracker struct {
	written []chart.ResourceRef
	emitted int
}

// before records a barrier ahead of work that reads refs, when any of them was written
// earlier in the frame.
func (t *barrierTracker) before(cl *gpu.CommandList, reads []chart.ResourceRef) {
	var hit []chart.ResourceRef
	kept := t.written[:0:0]
	for _, w := range t.written {
		if overlapsAny(w, reads) {
			hit = append(hit, w)
			continue
		}
		kept = append(kept, w)
	}
	if len(hit) == 0 {
		return
	}
	t.written = kept

	names := make([]string, 0, len(hit))
	seen := make(map[string]bool, len(hit))
	for _, r := range hit {
		n := refName(r)
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	sort.Strings(names)
	cl.Record(gpu.Barrier{Resources: names})
	t.emitted++
	common.Logger().Debug("barrier", "resources", names)
}

// wrote marks refs as written by work recorded since the last barrier.
func (t *barrierTracker) wrote(writes ...chart.ResourceRef) {
	for _, w := range writes {
		if w.ID == chart.ScreenTarget {
			continue
		}
		t.written = append(t.written, w)
	}
}

// snapshot returns a copy to restore when a step's recording is discarded.
func (t *barrierTracker) snapshot() barrierTracker {
	return barrierTracker{written: append([]chart.ResourceRef(nil), t.written...), emitted: t.emitted}
}

func overlapsAny(r chart.ResourceRef, refs []chart.ResourceRef) bool {
	for _, o := range refs {
		if r.Overlaps(o) {
			return true
		}
	}
	return false
}

func refName(r chart.ResourceRef) string {
	if r.Level == chart.AllLevels {
		return r.ID
	}
	return fmt.Sprintf("%s[%d]", r.ID, r.Level)
}

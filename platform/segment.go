package platform

import (
	"fmt"
	"math"
	"strings"

	ctl "lautenbacher.net/gointerval/controller"
	seq "lautenbacher.net/gointerval/sequencer"
)

// segment is the part of the progress bar covering one phase of the plan.
type segment struct {
	first  int
	last   int
	phase  seq.Phase
	series int
}

// parsePlanSegments lays the run of cfg over width cells. Each cell shows
// the phase running at its middle and neighbouring cells of the same phase
// and series merge into one segment, so phases too short for a cell of
// their own are left out.
func parsePlanSegments(cfg seq.Config, width int) []*segment {
	total := seq.TotalSeconds(cfg)
	if total <= 0 || width <= 0 {
		return nil
	}
	var segments []*segment
	for cell := 0; cell < width; cell++ {
		phase, series := seq.At(cfg, cellSecond(cell, total, width))
		if n := len(segments); n > 0 && segments[n-1].phase == phase && segments[n-1].series == series {
			segments[n-1].last = cell
			continue
		}
		segments = append(segments, &segment{first: cell, last: cell, phase: phase, series: series})
	}
	return segments
}

// cellSecond is the second of the run in the middle of cell.
func cellSecond(cell, total, width int) int {
	return int(float64(total) * (float64(cell) + 0.5) / float64(width))
}

func scale(seconds, total, width int) int {
	return int(math.Round(float64(seconds) * float64(width) / float64(total)))
}

// filledCells is how much of the bar the state has covered. A stopped run
// stays filled up to where it was stopped.
func filledCells(cfg seq.Config, st ctl.RunState, width int) int {
	total := seq.TotalSeconds(cfg)
	if total <= 0 || st.Status == ctl.Idle {
		return 0
	}
	return min(scale(st.Elapsed, total, width), width)
}

var phaseColors = map[seq.Phase]string{
	seq.PrepareBeforeExercise: "[#ffff00]",
	seq.Exercise:              "[#ff3030]",
	seq.PrepareBeforeBreak:    "[#ffff00]",
	seq.Break:                 "[#30c030]",
}

// renderProgress draws the bar as tview color tagged text.
func renderProgress(cfg seq.Config, st ctl.RunState, width int) string {
	filled := filledCells(cfg, st, width)
	var buf strings.Builder
	for _, seg := range parsePlanSegments(cfg, width) {
		buf.WriteString(phaseColors[seg.phase])
		for i := seg.first; i <= seg.last; i++ {
			if i < filled {
				buf.WriteString("█")
			} else {
				buf.WriteString("░")
			}
		}
		buf.WriteString("[-]")
	}
	return buf.String()
}

func formatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// stateLabel names what the user sees: Ready before the first run, the
// phase while running, Finished afterwards.
func stateLabel(st ctl.RunState) string {
	switch st.Status {
	case ctl.Idle:
		return "Ready"
	case ctl.Finished:
		return "Finished"
	}
	return st.Phase.String()
}

func seriesLabel(st ctl.RunState) string {
	return fmt.Sprintf("Series %d / %d", st.Series, st.SeriesCount)
}

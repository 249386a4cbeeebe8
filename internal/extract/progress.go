package extract

// Stage identifies which phase of the pipeline a progress update belongs to.
type Stage string

const (
	StageDecode  Stage = "decode"
	StagePages   Stage = "pages"
	StagePersist Stage = "persist"
	StageDone    Stage = "done"
	StageFailed  Stage = "failed"
)

// Progress is a single pipeline progress update. Percent runs 0..100 and
// never decreases within a run except on failure, where it resets to 0.
// Indeterminate marks phases with no measurable sub-progress (decode, OCR
// engine warm-up); consumers may show a spinner instead of the bar.
type Progress struct {
	Stage         Stage
	Percent       int
	Indeterminate bool
}

// ProgressFunc receives pipeline progress updates. A nil func is valid.
type ProgressFunc func(Progress)

// reporter clamps updates so percent is monotonic for the lifetime of a
// run. Only fail() may move backwards.
type reporter struct {
	last int
	fn   ProgressFunc
}

func newReporter(fn ProgressFunc) *reporter {
	return &reporter{fn: fn}
}

func (r *reporter) set(stage Stage, pct int) {
	if pct > 100 {
		pct = 100
	}
	if pct < r.last {
		pct = r.last
	}
	r.last = pct
	if r.fn != nil {
		r.fn(Progress{Stage: stage, Percent: pct})
	}
}

func (r *reporter) indeterminate(stage Stage) {
	if r.fn != nil {
		r.fn(Progress{Stage: stage, Percent: r.last, Indeterminate: true})
	}
}

func (r *reporter) fail() {
	r.last = 0
	if r.fn != nil {
		r.fn(Progress{Stage: StageFailed, Percent: 0})
	}
}

// pagePercent maps page i of n (1-based) into the 20..80 band.
func pagePercent(i, n int) int {
	if n <= 0 {
		return 20
	}
	return 20 + int(float64(60*i)/float64(n)+0.5)
}

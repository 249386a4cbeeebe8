package extract

import "testing"

func TestReporterMonotonic(t *testing.T) {
	var got []int
	rep := newReporter(func(p Progress) { got = append(got, p.Percent) })

	rep.set(StageDecode, 10)
	rep.set(StageDecode, 20)
	rep.set(StagePages, 15) // clamped to 20
	rep.set(StagePages, 50)
	rep.set(StageDone, 250) // clamped to 100

	want := []int{10, 20, 20, 50, 100}
	if len(got) != len(want) {
		t.Fatalf("got %d updates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("update %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestReporterFailResets(t *testing.T) {
	var last Progress
	rep := newReporter(func(p Progress) { last = p })

	rep.set(StagePages, 60)
	rep.fail()

	if last.Stage != StageFailed || last.Percent != 0 {
		t.Fatalf("after fail got %+v, want stage=failed percent=0", last)
	}
	rep.set(StageDecode, 5)
	if last.Percent != 5 {
		t.Errorf("reporter should accept low values after fail, got %d", last.Percent)
	}
}

func TestReporterIndeterminate(t *testing.T) {
	var last Progress
	rep := newReporter(func(p Progress) { last = p })

	rep.set(StageDecode, 10)
	rep.indeterminate(StageDecode)

	if !last.Indeterminate {
		t.Fatal("expected indeterminate update")
	}
	if last.Percent != 10 {
		t.Errorf("indeterminate update should carry last percent, got %d", last.Percent)
	}
}

func TestReporterNilCallback(t *testing.T) {
	rep := newReporter(nil)
	rep.set(StagePages, 40)
	rep.indeterminate(StagePages)
	rep.fail()
}

func TestPagePercent(t *testing.T) {
	tests := []struct {
		i, n, want int
	}{
		{1, 1, 80},
		{1, 3, 40},
		{2, 3, 60},
		{3, 3, 80},
		{1, 7, 29},
		{7, 7, 80},
		{0, 0, 20},
	}
	for _, tt := range tests {
		if got := pagePercent(tt.i, tt.n); got != tt.want {
			t.Errorf("pagePercent(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

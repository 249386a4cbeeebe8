package pdf

import (
	"errors"
	"strings"
	"testing"
)

// fakeDocument serves canned page text for probe tests.
type fakeDocument struct {
	pages   []string
	pageErr map[int]error
}

func (d *fakeDocument) NumPage() int { return len(d.pages) }

func (d *fakeDocument) PageText(i int) (string, error) {
	if err, ok := d.pageErr[i]; ok {
		return "", err
	}
	return d.pages[i], nil
}

func (d *fakeDocument) RenderPage(i int, scale float64) ([]byte, error) {
	return nil, errors.New("not rendered in probe tests")
}

func (d *fakeDocument) Close() error { return nil }

func TestProbeTextLayer(t *testing.T) {
	tests := []struct {
		name      string
		pages     []string
		threshold int
		want      bool
	}{
		{
			name:      "dense text layer",
			pages:     []string{strings.Repeat("ab", 200), strings.Repeat("cd", 200)},
			threshold: 300,
			want:      true,
		},
		{
			name:      "scanned document with no text",
			pages:     []string{"", "  \n\t ", ""},
			threshold: 300,
			want:      false,
		},
		{
			name:      "sparse text below threshold",
			pages:     []string{"page 1", "page 2", "page 3"},
			threshold: 300,
			want:      false,
		},
		{
			name:      "threshold defaults when non-positive",
			pages:     []string{strings.Repeat("x", DefaultProbeThreshold)},
			threshold: 0,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ProbeTextLayer(&fakeDocument{pages: tt.pages}, tt.threshold)
			if res.HasTextLayer != tt.want {
				t.Errorf("HasTextLayer = %v, want %v (chars=%d)", res.HasTextLayer, tt.want, res.TotalCharsInSample)
			}
			if res.TotalPages != len(tt.pages) {
				t.Errorf("TotalPages = %d, want %d", res.TotalPages, len(tt.pages))
			}
		})
	}
}

func TestProbeTextLayerSamplesAllSmallPages(t *testing.T) {
	doc := &fakeDocument{pages: []string{"a", "b", "c"}}
	res := ProbeTextLayer(doc, 10)
	if len(res.SampledPages) != 3 {
		t.Fatalf("expected all 3 pages sampled, got %v", res.SampledPages)
	}
}

func TestProbeTextLayerIgnoresPageErrors(t *testing.T) {
	doc := &fakeDocument{
		pages:   []string{strings.Repeat("z", 400), ""},
		pageErr: map[int]error{1: errors.New("boom")},
	}
	res := ProbeTextLayer(doc, 300)
	if !res.HasTextLayer {
		t.Fatal("expected text layer despite one failing page")
	}
}

func TestSampleIndices(t *testing.T) {
	tests := []struct {
		total    int
		wantLen  int
	}{
		{0, 0},
		{1, 1},
		{5, 5},
		{6, 5},
		{100, 5},
	}
	for _, tt := range tests {
		got := sampleIndices(tt.total)
		if len(got) != tt.wantLen {
			t.Errorf("sampleIndices(%d) returned %d indices, want %d", tt.total, len(got), tt.wantLen)
		}
		for i := 1; i < len(got); i++ {
			if got[i] <= got[i-1] {
				t.Errorf("sampleIndices(%d) not strictly sorted: %v", tt.total, got)
			}
		}
		for _, idx := range got {
			if idx < 0 || idx >= tt.total {
				t.Errorf("sampleIndices(%d) out of range index %d", tt.total, idx)
			}
		}
	}
}

func TestNormalizeText(t *testing.T) {
	got := normalizeText("line one  \r\nline two\t\n\n")
	want := "line one\nline two"
	if got != want {
		t.Errorf("normalizeText = %q, want %q", got, want)
	}
}

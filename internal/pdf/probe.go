package pdf

import (
	"math/rand"
	"regexp"
	"sort"
	"time"
)

// PageProbe captures the result of probing a single page's text layer.
type PageProbe struct {
	PageIndex int    `json:"page_index"`
	CharCount int    `json:"char_count"`
	Err       string `json:"err,omitempty"`
}

// ProbeResult summarizes the text-layer check for a document.
type ProbeResult struct {
	TotalPages         int         `json:"total_pages"`
	SampledPages       []int       `json:"sampled_pages"`
	TotalCharsInSample int         `json:"total_chars_in_sample"`
	Threshold          int         `json:"threshold"`
	Probes             []PageProbe `json:"probes"`
	HasTextLayer       bool        `json:"has_text_layer"`
}

// DefaultProbeThreshold is used when a non-positive threshold is passed in.
const DefaultProbeThreshold = 300

var whitespaceRegex = regexp.MustCompile(`\s+`)

func stripWhitespace(s string) string {
	return whitespaceRegex.ReplaceAllString(s, "")
}

// ProbeTextLayer samples up to five pages of an open document and reports
// whether the document carries a usable embedded text layer. Documents
// without one rely entirely on OCR, which is worth surfacing in logs before
// a long extraction run.
func ProbeTextLayer(doc Document, threshold int) *ProbeResult {
	if threshold <= 0 {
		threshold = DefaultProbeThreshold
	}

	total := doc.NumPage()
	res := &ProbeResult{
		TotalPages:   total,
		SampledPages: []int{},
		Threshold:    threshold,
	}
	if total <= 0 {
		return res
	}

	res.SampledPages = sampleIndices(total)

	for _, idx := range res.SampledPages {
		probe := PageProbe{PageIndex: idx}
		text, err := doc.PageText(idx)
		if err != nil {
			probe.Err = err.Error()
			res.Probes = append(res.Probes, probe)
			continue
		}
		// Unicode-aware: count runes after removing whitespace
		count := len([]rune(stripWhitespace(text)))
		probe.CharCount = count
		res.TotalCharsInSample += count
		res.Probes = append(res.Probes, probe)

		if res.TotalCharsInSample >= threshold {
			// Early exit for speed
			break
		}
	}

	res.HasTextLayer = res.TotalCharsInSample >= threshold
	return res
}

// sampleIndices picks up to 5 pages: all of them for small documents,
// otherwise first, mid, last plus random distinct fillers.
func sampleIndices(total int) []int {
	if total <= 0 {
		return []int{}
	}
	if total <= 5 {
		idx := make([]int, total)
		for i := 0; i < total; i++ {
			idx[i] = i
		}
		return idx
	}

	mid := total / 2
	base := map[int]struct{}{0: {}, mid: {}, total - 1: {}}

	// Seed per call; fine for sampling
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for len(base) < 5 {
		cand := rnd.Intn(total)
		if _, ok := base[cand]; ok {
			continue
		}
		base[cand] = struct{}{}
	}

	out := make([]int, 0, 5)
	for i := range base {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

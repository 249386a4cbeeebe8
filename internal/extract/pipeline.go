package extract

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/local/examprep/internal/metrics"
	"github.com/local/examprep/internal/ocr"
	"github.com/local/examprep/internal/pdf"
)

// UploadSaver persists an extracted document as an upload record.
// Implemented by the uploads store; narrow so tests can fake it.
type UploadSaver interface {
	SaveUpload(ctx context.Context, ownerID, fileName, filePath, extractedText string) (string, error)
}

// ExtractedDocument is the pipeline output: full recovered text plus the
// upload record id when persistence succeeded.
type ExtractedDocument struct {
	FileName  string
	PageCount int
	FullText  string
	UploadID  string
}

// Options tune a Pipeline. Zero values fall back to sane defaults.
type Options struct {
	// RasterScale is the page render scale fed to OCR (2.0 keeps small
	// fonts legible without ballooning image size).
	RasterScale float64
	// ProbeThreshold is the character count above which the text layer
	// is considered usable. Logged only; OCR runs regardless.
	ProbeThreshold int
}

// Pipeline turns a PDF file into recovered text: per-page text layer
// extraction merged with OCR over a rasterized render of the same page.
// One OCR engine is created per run and always released, including on
// failure paths.
type Pipeline struct {
	opener  pdf.Opener
	engines ocr.Factory
	store   UploadSaver
	opts    Options
	log     zerolog.Logger
}

func NewPipeline(opener pdf.Opener, engines ocr.Factory, store UploadSaver, opts Options, log zerolog.Logger) *Pipeline {
	if opts.RasterScale <= 0 {
		opts.RasterScale = 2.0
	}
	if opts.ProbeThreshold <= 0 {
		opts.ProbeThreshold = pdf.DefaultProbeThreshold
	}
	return &Pipeline{opener: opener, engines: engines, store: store, opts: opts, log: log}
}

// Extract runs the full pipeline for one file. Progress is reported as a
// non-decreasing 0..100 sequence: decode up to 20, one update per page
// across 20..80, persistence from 90 to 100. Fatal failures reset
// progress to 0 and return *ExtractionError. A persistence failure is
// non-fatal: the document is returned together with *PersistenceError.
func (p *Pipeline) Extract(ctx context.Context, filePath, fileName, ownerID string, onProgress ProgressFunc) (*ExtractedDocument, error) {
	rep := newReporter(onProgress)
	rep.set(StageDecode, 0)
	rep.indeterminate(StageDecode)

	doc, err := p.opener.Open(filePath)
	if err != nil {
		p.log.Error().Err(err).Str("file", fileName).Msg("pdf decode failed")
		metrics.IncExtraction("decode_error")
		rep.fail()
		return nil, &ExtractionError{Stage: "decode", Err: err}
	}
	defer doc.Close()

	n := doc.NumPage()
	if n < 1 {
		metrics.IncExtraction("decode_error")
		rep.fail()
		return nil, &ExtractionError{Stage: "decode", Err: errEmptyDocument}
	}
	rep.set(StageDecode, 10)

	probe := pdf.ProbeTextLayer(doc, p.opts.ProbeThreshold)
	p.log.Info().Str("file", fileName).Int("pages", n).
		Bool("text_layer", probe.HasTextLayer).Int("probe_chars", probe.TotalCharsInSample).
		Msg("starting extraction")
	rep.set(StageDecode, 20)

	engine, err := p.engines(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("ocr engine init failed")
		metrics.IncExtraction("ocr_init_error")
		rep.fail()
		return nil, &ExtractionError{Stage: "ocr_init", Err: err}
	}
	defer engine.Close()

	var full strings.Builder
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			metrics.IncExtraction("canceled")
			rep.fail()
			return nil, &ExtractionError{Stage: "pages", Err: err}
		}
		textLayer, terr := doc.PageText(i)
		if terr != nil {
			p.log.Warn().Err(terr).Int("page", i+1).Msg("text layer read failed")
			textLayer = ""
		}
		ocrText, degraded := p.recognizePage(ctx, engine, doc, i)
		if degraded {
			// Raster or OCR unavailable for this page: keep the text
			// layer alone rather than failing the whole run.
			full.WriteString(textLayer)
			full.WriteString("\n\n")
			metrics.IncPage("degraded")
		} else {
			full.WriteString(textLayer)
			full.WriteString("\n")
			full.WriteString(ocrText)
			full.WriteString("\n\n")
			if textLayer != "" {
				metrics.IncPage("text_layer")
			} else {
				metrics.IncPage("ocr")
			}
		}
		rep.set(StagePages, pagePercent(i+1, n))
	}

	fullText := strings.TrimSpace(full.String())
	rep.set(StagePersist, 90)

	result := &ExtractedDocument{FileName: fileName, PageCount: n, FullText: fullText}
	uploadID, perr := p.store.SaveUpload(ctx, ownerID, fileName, filePath, fullText)
	rep.set(StageDone, 100)

	if perr != nil {
		p.log.Error().Err(perr).Str("file", fileName).Msg("upload record save failed")
		metrics.IncExtraction("persist_error")
		return result, &PersistenceError{Err: perr}
	}
	result.UploadID = uploadID
	metrics.IncExtraction("ok")
	p.log.Info().Str("file", fileName).Str("upload_id", uploadID).
		Int("chars", len(fullText)).Msg("extraction complete")
	return result, nil
}

func (p *Pipeline) recognizePage(ctx context.Context, engine ocr.Engine, doc pdf.Document, i int) (text string, degraded bool) {
	img, err := doc.RenderPage(i, p.opts.RasterScale)
	if err != nil {
		p.log.Warn().Err(err).Int("page", i+1).Msg("page raster failed, skipping ocr")
		return "", true
	}
	out, err := engine.Recognize(ctx, img, "image/jpeg")
	if err != nil {
		p.log.Warn().Err(err).Int("page", i+1).Msg("ocr failed, keeping text layer only")
		return "", true
	}
	return out, false
}

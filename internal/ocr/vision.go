package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog/log"
)

// VisionEngine recognizes page text with GCP Vision document text
// detection. The annotator client is dialed once and reused for every
// page of the run.
type VisionEngine struct {
	client      *vision.ImageAnnotatorClient
	pageTimeout time.Duration
}

// NewVisionEngine dials the Vision API. Credentials come from the ambient
// GCP environment (GOOGLE_APPLICATION_CREDENTIALS etc.).
func NewVisionEngine(ctx context.Context, pageTimeout time.Duration) (*VisionEngine, error) {
	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	if pageTimeout <= 0 {
		pageTimeout = 60 * time.Second
	}
	return &VisionEngine{client: client, pageTimeout: pageTimeout}, nil
}

// NewVisionFactory returns an ocr.Factory producing one VisionEngine per
// extraction run.
func NewVisionFactory(pageTimeout time.Duration) Factory {
	return func(ctx context.Context) (Engine, error) {
		return NewVisionEngine(ctx, pageTimeout)
	}
}

func (e *VisionEngine) Recognize(ctx context.Context, image []byte, mime string) (string, error) {
	if len(image) == 0 {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.pageTimeout)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := e.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	fta := r0.FullTextAnnotation
	if fta == nil {
		return "", nil
	}
	text := strings.TrimSpace(fta.Text)

	log.Debug().Str("mime", mime).Int("image_bytes", len(image)).Int("chars", len(text)).Msg("ocr page recognized")
	return text, nil
}

func (e *VisionEngine) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}

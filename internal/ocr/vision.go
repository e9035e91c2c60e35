package ocr

import (
	"context"
	"fmt"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// Vision recognizes text with Google Cloud Vision document text detection.
type Vision struct {
	client *vision.ImageAnnotatorClient
}

// NewVision dials the Cloud Vision API. Credentials come from opts or the
// application default credentials.
func NewVision(ctx context.Context, opts ...option.ClientOption) (*Vision, error) {
	c, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &Vision{client: c}, nil
}

// Close releases the underlying connection.
func (v *Vision) Close() error {
	return v.client.Close()
}

// Recognize implements pdftext.Recognizer.
func (v *Vision) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", nil
	}
	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: image},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return "", nil
	}
	r := resp.GetResponses()[0]
	if st := r.GetError(); st != nil && st.GetCode() != 0 {
		return "", fmt.Errorf("vision annotate: %s", st.GetMessage())
	}
	return r.GetFullTextAnnotation().GetText(), nil
}

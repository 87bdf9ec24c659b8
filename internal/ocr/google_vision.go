package ocr

import (
	"context"
	"fmt"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionEngine implements Engine using Google Cloud Vision document text detection.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionEngine creates a Vision engine with credentials from environment.
// It expects either GOOGLE_CREDENTIALS JSON or a GOOGLE_APPLICATION_CREDENTIALS path,
// and falls back to Application Default Credentials.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	opts, source := googleCredentialOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if source == "" {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create client with "+source)
	}

	return &VisionEngine{client: client}, nil
}

// NewVisionEngineWithClient creates a Vision engine around an explicit client.
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient) *VisionEngine {
	return &VisionEngine{client: client}
}

func (v *VisionEngine) Name() string { return EngineVision }

// Recognize sends the image inline to Vision. opts.Language is passed as a language hint.
func (v *VisionEngine) Recognize(ctx context.Context, imagePath string, opts Options) (string, error) {
	const op = "Recognize"

	content, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("%s: read image: %w", op, err)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: imageContext(opts),
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", WrapOCRError(op, err, "Vision API call failed")
	}
	if len(resp.Responses) == 0 {
		return "", engineError(op, fmt.Errorf("no response from Vision API"))
	}

	page := resp.Responses[0]
	if page.Error != nil {
		return "", engineError(op, fmt.Errorf("Vision API error: %s", page.Error.Message))
	}
	if page.FullTextAnnotation == nil {
		return "", nil
	}
	return page.FullTextAnnotation.Text, nil
}

func imageContext(opts Options) *visionpb.ImageContext {
	if opts.Language == "" {
		return nil
	}
	return &visionpb.ImageContext{LanguageHints: []string{visionLanguage(opts.Language)}}
}

// visionLanguage maps Tesseract's three-letter codes to the BCP-47 hints Vision expects.
func visionLanguage(lang string) string {
	switch lang {
	case "eng":
		return "en"
	case "deu":
		return "de"
	case "fra":
		return "fr"
	case "jpn":
		return "ja"
	case "chi_sim", "chi_tra":
		return "zh"
	case "kor":
		return "ko"
	default:
		return lang
	}
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// googleCredentialOptions returns client options for the configured credentials
// and a label for the source used. The label is empty when falling back to
// Application Default Credentials.
func googleCredentialOptions() ([]option.ClientOption, string) {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}, "GOOGLE_CREDENTIALS"
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}, "GOOGLE_APPLICATION_CREDENTIALS"
	}
	return nil, ""
}

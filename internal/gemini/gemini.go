// Package gemini generates concept images with Google Gemini image models.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"  // BMP decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration
	"google.golang.org/api/option"

	"github.com/Faultbox/turntable/internal/logger"
)

// APIKeyEnv is the environment variable holding the API key.
const APIKeyEnv = "GEMINI_API_KEY"

// ErrNoImage is returned when a response carries no inline image.
var ErrNoImage = errors.New("no image in gemini response")

// Client is a concept image generator.
type Client struct {
	Model  string
	APIKey string
	Logger *zap.Logger
}

// New returns a Client for model, reading the key from the environment.
func New(model string, log *zap.Logger) *Client {
	return &Client{Model: model, APIKey: os.Getenv(APIKeyEnv), Logger: log}
}

// Generate renders prompt into an image and returns it as PNG bytes.
// Reference images, if any, are sent along with the prompt.
func (c *Client) Generate(ctx context.Context, prompt string, refs ...[]byte) ([]byte, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("%s environment variable not set", APIKeyEnv)
	}
	log := logger.OrNop(c.Logger)

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(c.Model)

	parts := []genai.Part{genai.Text(prompt)}
	for _, ref := range refs {
		parts = append(parts, genai.ImageData("png", ref))
	}

	log.Debug("generating concept", zap.String("model", c.Model), zap.Int("prompt_len", len(prompt)))
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	blob, err := imageFromResponse(resp)
	if err != nil {
		return nil, err
	}
	return toPNG(blob)
}

// imageFromResponse returns the first inline image of the first candidate.
func imageFromResponse(resp *genai.GenerateContentResponse) (genai.Blob, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return genai.Blob{}, fmt.Errorf("no candidates returned from Gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return genai.Blob{}, fmt.Errorf("empty content returned from Gemini")
	}

	var text []string
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Blob:
			if strings.HasPrefix(p.MIMEType, "image/") && len(p.Data) > 0 {
				return p, nil
			}
		case genai.Text:
			text = append(text, string(p))
		}
	}
	if len(text) > 0 {
		return genai.Blob{}, fmt.Errorf("%w: model replied %q", ErrNoImage, strings.Join(text, " "))
	}
	return genai.Blob{}, ErrNoImage
}

// toPNG re-encodes non-PNG image data as PNG.
func toPNG(blob genai.Blob) ([]byte, error) {
	if blob.MIMEType == "image/png" {
		return blob.Data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", blob.MIMEType, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Package nanobanana renders background images with the Gemini image model.
package nanobanana

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const (
	// Model is the image generation model.
	Model = "gemini-2.5-flash-image"

	// aspectRatio matches the widescreen background surface.
	aspectRatio = "16:9"

	// fallbackMIME is assumed when the API omits the mime type of the
	// returned image bytes.
	fallbackMIME = "image/png"
)

// Image is one rendered background.
type Image struct {
	Data []byte
	MIME string
}

// Renderer generates background images from scene prompts.
type Renderer struct {
	client *genai.Client
}

// New creates a Renderer authenticated with the given API key.
func New(ctx context.Context, apiKey string) (*Renderer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("nanobanana: create client: %w", err)
	}
	return &Renderer{client: client}, nil
}

// Render generates an image for the prompt. When previous is non-nil it is
// sent alongside the prompt so the model evolves the existing scene instead
// of starting from scratch.
func (r *Renderer) Render(ctx context.Context, prompt string, previous *Image) (*Image, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if previous != nil && len(previous.Data) > 0 {
		mime := previous.MIME
		if mime == "" {
			mime = fallbackMIME
		}
		parts = append(parts, genai.NewPartFromBytes(previous.Data, mime))
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	cfg := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: aspectRatio},
	}

	resp, err := r.client.Models.GenerateContent(ctx, Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("nanobanana: generate: %w", err)
	}
	return firstImage(resp)
}

// firstImage extracts the first inline image part of the response.
func firstImage(resp *genai.GenerateContentResponse) (*Image, error) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = fallbackMIME
			}
			return &Image{Data: p.InlineData.Data, MIME: mime}, nil
		}
	}
	return nil, errors.New("nanobanana: response contains no image data")
}

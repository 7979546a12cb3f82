package nanobanana

import (
	"testing"

	"google.golang.org/genai"
)

func TestFirstImagePicksInlineData(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: "here is your image"},
						{InlineData: &genai.Blob{MIMEType: "image/webp", Data: []byte{1, 2, 3}}},
						{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{9}}},
					},
				},
			},
		},
	}

	img, err := firstImage(resp)
	if err != nil {
		t.Fatalf("firstImage: %v", err)
	}
	if img.MIME != "image/webp" || len(img.Data) != 3 {
		t.Fatalf("unexpected image: mime=%s len=%d", img.MIME, len(img.Data))
	}
}

func TestFirstImageFallbackMIME(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{InlineData: &genai.Blob{Data: []byte{1}}},
					},
				},
			},
		},
	}

	img, err := firstImage(resp)
	if err != nil {
		t.Fatalf("firstImage: %v", err)
	}
	if img.MIME != "image/png" {
		t.Fatalf("mime = %s, want image/png", img.MIME)
	}
}

func TestFirstImageNoImage(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "sorry"}}}},
		},
	}
	if _, err := firstImage(resp); err == nil {
		t.Fatal("expected error for text-only response")
	}
}

package dmr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ChatRequest is the OpenAI-compatible chat completion payload.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multimodal user message.
type ContentPart struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	InputAudio *InputAudio `json:"input_audio,omitempty"`
}

type InputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// ChatResponse is the raw completion response. Content is kept unparsed
// because local runners answer with either a plain string or structured
// parts, and some expose the transcript in a top-level text field.
type ChatResponse struct {
	Text    string `json:"text"`
	Choices []struct {
		Message struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletion sends a chat completion request and returns the raw
// response.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.request(ctx, http.MethodPost, enginesPrefix+"/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DefaultTranscribePrompt asks the speech model for a verbatim transcript
// only.
const DefaultTranscribePrompt = "Transcribe this audio recording verbatim. Reply with only the transcript text, nothing else."

// Transcribe sends base64-encoded WAV audio to the transcription model and
// returns the transcript text. The instruction is the text part of the
// message; pass DefaultTranscribePrompt for plain transcription.
func (c *Client) Transcribe(ctx context.Context, model, instruction, wavBase64 string) (string, error) {
	req := ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: instruction},
					{Type: "input_audio", InputAudio: &InputAudio{Data: wavBase64, Format: "wav"}},
				},
			},
		},
	}

	resp, err := c.ChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

// Decide sends the decision prompt and transcript to the prompt model and
// returns the model's raw reply for the caller to parse.
func (c *Client) Decide(ctx context.Context, model, system, transcript string) (string, error) {
	req := ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: transcript},
		},
	}

	resp, err := c.ChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

// extractText pulls the reply text out of a completion response. A flat
// text field wins, then a plain string message content, then the text parts
// of a structured content array.
func extractText(resp *ChatResponse) (string, error) {
	if strings.TrimSpace(resp.Text) != "" {
		return strings.TrimSpace(resp.Text), nil
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("dmr: completion response has no choices")
	}

	raw := resp.Choices[0].Message.Content
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strings.TrimSpace(asString), nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var sb strings.Builder
		for _, p := range parts {
			sb.WriteString(p.Text)
		}
		return strings.TrimSpace(sb.String()), nil
	}

	return "", errors.New("dmr: unrecognized completion content shape")
}

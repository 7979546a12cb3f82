package pipeline

import "testing"

func TestParseDecision(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		action Action
		prompt string
		reason string
	}{
		{
			name:   "well formed generate",
			raw:    `{"status":"generate","prompt":"a lighthouse in fog"}`,
			action: ActionGenerate,
			prompt: "a lighthouse in fog",
		},
		{
			name:   "well formed skip",
			raw:    `{"status":"skip","reason":"small talk"}`,
			action: ActionSkip,
			reason: "small talk",
		},
		{
			name:   "skip without reason gets default",
			raw:    `{"status":"skip"}`,
			action: ActionSkip,
			reason: "model chose to skip",
		},
		{
			name:   "generate without prompt becomes skip",
			raw:    `{"status":"generate","prompt":"  "}`,
			action: ActionSkip,
			reason: "omitted prompt",
		},
		{
			name:   "empty reply becomes skip",
			raw:    "   \n ",
			action: ActionSkip,
			reason: "empty response",
		},
		{
			name:   "bare text becomes a prompt",
			raw:    "a lake at dusk",
			action: ActionGenerate,
			prompt: "a lake at dusk",
		},
		{
			name:   "single quoted almost JSON is repaired",
			raw:    `{'status':'skip','reason':'nothing new'}`,
			action: ActionSkip,
			reason: "nothing new",
		},
		{
			name:   "code fenced JSON is repaired",
			raw:    "```json\n{\"status\":\"generate\",\"prompt\":\"rooftop garden\"}\n```",
			action: ActionGenerate,
			prompt: "rooftop garden",
		},
		{
			name:   "unknown status falls back to prompt",
			raw:    `{"status":"maybe","prompt":"x"}`,
			action: ActionGenerate,
			prompt: `{"status":"maybe","prompt":"x"}`,
		},
		{
			name:   "status case insensitive",
			raw:    `{"status":"SKIP","reason":"quiet"}`,
			action: ActionSkip,
			reason: "quiet",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec := ParseDecision(tc.raw)
			if dec.Action != tc.action {
				t.Fatalf("action = %v, want %v", dec.Action, tc.action)
			}
			if dec.Prompt != tc.prompt {
				t.Fatalf("prompt = %q, want %q", dec.Prompt, tc.prompt)
			}
			if dec.Reason != tc.reason {
				t.Fatalf("reason = %q, want %q", dec.Reason, tc.reason)
			}
		})
	}
}

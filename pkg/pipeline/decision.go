package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Action is the outcome of a decision.
type Action int

const (
	// ActionSkip leaves the current background in place.
	ActionSkip Action = iota

	// ActionGenerate renders a new background from the prompt.
	ActionGenerate
)

// Decision is the prompt model's verdict on one transcript.
type Decision struct {
	Action Action
	Prompt string
	Reason string
}

// Generate builds a generate decision.
func Generate(prompt string) Decision {
	return Decision{Action: ActionGenerate, Prompt: prompt}
}

// Skip builds a skip decision.
func Skip(reason string) Decision {
	return Decision{Action: ActionSkip, Reason: reason}
}

// decisionReply is the JSON grammar the prompt model is asked to follow.
type decisionReply struct {
	Status string `json:"status"`
	Prompt string `json:"prompt"`
	Reason string `json:"reason"`
}

// ParseDecision interprets the model's raw reply. Well-formed JSON is taken
// at face value, almost-JSON goes through a repair pass, and anything else
// is treated as a bare scene prompt. Local models drift off grammar often
// enough that rejecting unparseable replies would starve the renderer.
func ParseDecision(raw string) Decision {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Skip("empty response")
	}

	var reply decisionReply
	if err := json.Unmarshal([]byte(trimmed), &reply); err != nil {
		fixed, err := jsonrepair.JSONRepair(trimmed)
		if err != nil {
			return Generate(trimmed)
		}
		if err := json.Unmarshal([]byte(fixed), &reply); err != nil {
			return Generate(trimmed)
		}
	}

	switch strings.ToLower(strings.TrimSpace(reply.Status)) {
	case "skip":
		reason := strings.TrimSpace(reply.Reason)
		if reason == "" {
			reason = "model chose to skip"
		}
		return Skip(reason)
	case "generate":
		prompt := strings.TrimSpace(reply.Prompt)
		if prompt == "" {
			return Skip("omitted prompt")
		}
		return Generate(prompt)
	default:
		return Generate(trimmed)
	}
}

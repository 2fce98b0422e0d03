package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// recordedOK is the JSON result returned to the LLM on a successful tool call.
const recordedOK = `{"recorded": "ok"}`

// ContactTool records that a visitor wants to be contacted. The LLM calls it
// with the visitor's email plus optional name and conversation notes.
type ContactTool struct {
	sinks *Sinks
}

// contactInput is the JSON-serialisable input schema for ContactTool.
type contactInput struct {
	// Email is the visitor's email address.
	Email string `json:"email"`
	// Name is the visitor's name, if they provided it.
	Name string `json:"name"`
	// Notes holds additional conversation context worth recording.
	Notes string `json:"notes"`
}

// NewContactTool constructs a ContactTool writing to the given sinks.
func NewContactTool(sinks *Sinks) *ContactTool {
	return &ContactTool{sinks: sinks}
}

// Name returns the tool name registered with the agent.
func (t *ContactTool) Name() string { return "record_user_details" }

// Info returns the Eino tool metadata including the JSON input schema.
func (t *ContactTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: "Use this tool to record that a user is interested in being in touch and provided an email address",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"email": {
				Type:     schema.String,
				Desc:     "The email address of this user",
				Required: true,
			},
			"name": {
				Type: schema.String,
				Desc: "The user's name, if they provided it",
			},
			"notes": {
				Type: schema.String,
				Desc: "Any additional information about the conversation that's worth recording to give context",
			},
		}),
	}, nil
}

// InvokableRun records the contact to every configured sink.
func (t *ContactTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input contactInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("record_user_details: invalid input: %w", err)
	}
	if input.Email == "" {
		return "", fmt.Errorf("record_user_details: email is required")
	}
	if input.Name == "" {
		input.Name = "Name not provided"
	}
	if input.Notes == "" {
		input.Notes = "not provided"
	}

	t.sinks.invoked(t.Name())

	delivered := t.sinks.push(ctx,
		t.Name(),
		fmt.Sprintf("Recording %s with email %s and notes %s", input.Name, input.Email, input.Notes),
	)

	recorded := false
	if t.sinks.Inbox != nil {
		if err := t.sinks.Inbox.RecordContact(ctx, input.Email, input.Name, input.Notes); err != nil {
			t.sinks.logger().Warn("tools: inbox write failed",
				slog.String("tool", t.Name()),
				slog.Any("error", err),
			)
		} else {
			recorded = true
		}
	}

	if !delivered && !recorded {
		return "", fmt.Errorf("record_user_details: no sink accepted the record")
	}
	return recordedOK, nil
}

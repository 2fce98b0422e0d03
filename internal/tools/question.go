package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// QuestionTool records a visitor question the agent could not answer, so the
// owner can follow up and extend the grounding documents.
type QuestionTool struct {
	sinks *Sinks
}

// questionInput is the JSON-serialisable input schema for QuestionTool.
type questionInput struct {
	// Question is the question that could not be answered.
	Question string `json:"question"`
}

// NewQuestionTool constructs a QuestionTool writing to the given sinks.
func NewQuestionTool(sinks *Sinks) *QuestionTool {
	return &QuestionTool{sinks: sinks}
}

// Name returns the tool name registered with the agent.
func (t *QuestionTool) Name() string { return "record_unknown_question" }

// Info returns the Eino tool metadata including the JSON input schema.
func (t *QuestionTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: "Always use this tool to record any question that couldn't be answered as you didn't know the answer",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"question": {
				Type:     schema.String,
				Desc:     "The question that couldn't be answered",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun records the question to every configured sink.
func (t *QuestionTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input questionInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("record_unknown_question: invalid input: %w", err)
	}
	if input.Question == "" {
		return "", fmt.Errorf("record_unknown_question: question is required")
	}

	t.sinks.invoked(t.Name())

	delivered := t.sinks.push(ctx, t.Name(), fmt.Sprintf("Recording %s", input.Question))

	recorded := false
	if t.sinks.Inbox != nil {
		if err := t.sinks.Inbox.RecordQuestion(ctx, input.Question); err != nil {
			t.sinks.logger().Warn("tools: inbox write failed",
				slog.String("tool", t.Name()),
				slog.Any("error", err),
			)
		} else {
			recorded = true
		}
	}

	if !delivered && !recorded {
		return "", fmt.Errorf("record_unknown_question: no sink accepted the record")
	}
	return recordedOK, nil
}

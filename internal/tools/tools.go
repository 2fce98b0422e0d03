// Package tools defines the agent's tool-call handlers: recording a
// visitor's contact details and recording questions the agent could not
// answer. Each tool satisfies Eino's tool.BaseTool interface — Info exposes
// the JSON input schema, InvokableRun receives the LLM's arguments — so
// dispatch is a registered-handler lookup by tool name inside the agent loop.
package tools

import (
	"context"
	"log/slog"

	"github.com/calvia/persona/internal/inbox"
	"github.com/calvia/persona/internal/notify"
)

// Sinks holds the destinations a tool writes to. Either may be nil: push
// notifications are optional and the inbox can be disabled. A tool call
// succeeds when at least one configured sink accepts the record — a down
// notification channel must never kill the chat turn.
type Sinks struct {
	// Notifier delivers push notifications, or nil when disabled.
	Notifier notify.Notifier
	// Inbox persists records locally, or nil when disabled.
	Inbox inbox.Store
	// Log receives sink-failure warnings. Defaults to slog.Default.
	Log *slog.Logger
	// OnInvoke, when set, is called once per tool invocation with the tool
	// name. The server uses it to count tool calls.
	OnInvoke func(tool string)
}

// logger returns the configured logger or the process default.
func (s *Sinks) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// invoked reports a tool invocation to the observer, if any.
func (s *Sinks) invoked(tool string) {
	if s.OnInvoke != nil {
		s.OnInvoke(tool)
	}
}

// push attempts a notification and reports whether it succeeded.
// Failures are logged, never returned.
func (s *Sinks) push(ctx context.Context, tool, message string) bool {
	if s.Notifier == nil {
		return false
	}
	if err := s.Notifier.Push(ctx, message); err != nil {
		s.logger().Warn("tools: push notification failed",
			slog.String("tool", tool),
			slog.Any("error", err),
		)
		return false
	}
	return true
}

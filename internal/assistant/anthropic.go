package assistant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultModel is cheap and fast; translation is a small structured
	// extraction task, not long-form generation.
	DefaultModel = "claude-3-5-haiku-latest"

	maxReplyTokens = 1500
	maxRetries     = 3
)

// Claude translates user text via the Anthropic API.
type Claude struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaude creates a Claude translator. Env var ANTHROPIC_API_KEY takes
// precedence over the explicit apiKey. Returns ErrUnavailable when no key
// is configured so callers can degrade to the local parser.
func NewClaude(apiKey, model string) (*Claude, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or configure api_key", ErrUnavailable)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Claude{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}, nil
}

func (c *Claude) Translate(ctx context.Context, req Request) (Reply, error) {
	prompt := systemPrompt(req) + "\n\nUser request: " + req.Text

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxReplyTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var text string
	operation := func() error {
		message, err := c.client.Messages.New(ctx, params)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(message.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("unexpected response format: no content blocks"))
		}
		content := message.Content[0]
		if content.Type != "text" {
			return backoff.Permanent(fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type))
		}
		text = content.Text
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return Reply{}, fmt.Errorf("translate: %w", err)
	}
	return ParseReply(text)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

func systemPrompt(req Request) string {
	return `You are Stride, an assistant for a personal task manager. The user has these tasks:

` + ContextSummary(req.Tasks, req.Deleted) + `

When the user wants to modify tasks, respond with JSON actions. Never
respond with only text like "all tasks removed" - always provide the
actions themselves.

Single action:
{"action": "add|complete|uncomplete|delete|edit|search|list|list_deleted|restore", "task_id": 5, "task_text": "text", "task_title": "title", "task_description": "desc", "search_query": "query", "deleted_task_id": 3, "message": "response"}

Multiple actions:
{"actions": [{"action": "complete", "task_id": 1}, {"action": "complete", "task_id": 2}], "message": "response"}

Rules:
- "remove all tasks" requires a delete action for EVERY task id listed above.
- "complete all tasks" requires a complete action for every task id.
- When adding tasks, include a meaningful task_description.
- "restore the last deleted task" uses the deleted_task_id shown above.
- The "message" field is what the user sees; keep it natural, no JSON in it.
- For general chat, respond normally without JSON.

The task list above is current; use those exact ids.`
}

// Ensure Claude satisfies Translator.
var _ Translator = (*Claude)(nil)

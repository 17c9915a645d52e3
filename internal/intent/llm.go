package intent

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

const classifierPrompt = `
You are FRIDAY-NLU, the intent classifier of a voice assistant.
Your ONLY job is to map the user's utterance to one of the allowed intents.

RULES:
1. Do NOT converse.
2. Do NOT answer the question.
3. Output ONLY JSON. No markdown.
4. Never invent intents. If nothing fits, use "unknown".

OUTPUT FORMAT:
{"intent": "<one of the allowed intents or unknown>"}

ALLOWED INTENTS:
%s
`

type llmResult struct {
	Intent string `json:"intent"`
}

// LLMClassifier asks a chat model to pick a tag from the closed set.
type LLMClassifier struct {
	client openai.Client
	model  string
}

func NewLLMClassifier(client openai.Client, model string) *LLMClassifier {
	if model == "" {
		model = string(openai.ChatModelGPT5Nano)
	}
	return &LLMClassifier{client: client, model: model}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string, tags []string) (string, error) {
	prompt := fmt.Sprintf(classifierPrompt, "- "+strings.Join(tags, "\n- "))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(text),
		},
		Model: openai.ChatModel(c.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty message content")
	}

	log.Debug("Classified", "data", content)

	var out llmResult
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return "", fmt.Errorf("unmarshal classifier result: %w (raw: %s)", err, content)
	}

	return strings.TrimSpace(out.Intent), nil
}

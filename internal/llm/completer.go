package llm

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// CompleterOptions configures a chat-completion backed deck.Completer.
type CompleterOptions struct {
	Client       *Client
	Model        string
	Temperature  float64
	SystemPrompt string
}

// Completer sends one prompt per call and returns the assistant's text.
type Completer struct {
	client       *Client
	logger       *logrus.Logger
	model        string
	temperature  float64
	systemPrompt string
}

const (
	defaultCompleterSystemPrompt = "You are an expert presentation writer. Follow the formatting requirements exactly and return only the requested content."
	defaultCompleterTemperature  = 0.7
)

// NewCompleter constructs a Completer for the given model.
func NewCompleter(opts CompleterOptions) (*Completer, error) {
	if opts.Client == nil {
		return nil, eris.New("llm client is required")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, eris.New("completer model is required")
	}

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultCompleterTemperature
	}

	systemPrompt := strings.TrimSpace(opts.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultCompleterSystemPrompt
	}

	return &Completer{
		client:       opts.Client,
		logger:       opts.Client.logger,
		model:        model,
		temperature:  temperature,
		systemPrompt: systemPrompt,
	}, nil
}

// Model returns the model identifier requests are sent to.
func (c *Completer) Model() string {
	return c.model
}

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	trimmedPrompt := strings.TrimSpace(prompt)
	if trimmedPrompt == "" {
		return "", eris.New("prompt is required")
	}

	fields := logrus.Fields{"model": c.model, "prompt_chars": len(trimmedPrompt)}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(trimmedPrompt),
		},
		Temperature: openai.Float(c.temperature),
	}

	completion, err := c.client.chat.New(ctx, params)
	if err != nil {
		c.logError(fields, err, "requesting chat completion")
		return "", eris.Wrap(err, "requesting chat completion")
	}

	if len(completion.Choices) == 0 {
		err := eris.New("llm completion returned no choices")
		c.logError(fields, err, "processing chat completion")
		return "", err
	}

	choice := completion.Choices[0]
	if reason := strings.TrimSpace(choice.FinishReason); strings.EqualFold(reason, "content_filter") {
		err := eris.New("llm blocked the request via content filter")
		c.logError(fields, err, "completion blocked")
		return "", err
	}

	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		err := eris.Errorf("llm refused to complete the prompt: %s", refusal)
		c.logError(fields, err, "completion refused")
		return "", err
	}

	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		err := eris.New("llm response content is empty")
		c.logError(fields, err, "processing chat completion")
		return "", err
	}

	return content, nil
}

func (c *Completer) logError(fields logrus.Fields, err error, message string) {
	if c.logger == nil || err == nil {
		return
	}

	entry := c.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

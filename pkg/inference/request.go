package inference

import (
	"strings"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

func isReasoningModel(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	return strings.HasPrefix(m, "o1") ||
		strings.HasPrefix(m, "o3") ||
		strings.HasPrefix(m, "o4") ||
		strings.HasPrefix(m, "gpt-5")
}

// promptMessages drops empty and still-loading messages.
func promptMessages(req *Request) conversation.Messages {
	ret := make(conversation.Messages, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m == nil || m.Loading || strings.TrimSpace(m.Content) == "" {
			continue
		}
		ret = append(ret, m)
	}
	return ret
}

// MakeCompletionRequest builds a streaming chat completion request.
func MakeCompletionRequest(req *Request) (*go_openai.ChatCompletionRequest, error) {
	if req.Settings == nil {
		return nil, errors.New("no settings")
	}
	s := req.Settings

	prompt := promptMessages(req)
	if len(prompt) == 0 {
		return nil, errors.New("no messages to send")
	}
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(prompt))
	for _, m := range prompt {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	maxTokens := s.MaxTokens
	maxCompletionTokens := 0
	temperature := s.Temperature
	topP := s.TopP
	n := s.N
	presencePenalty := s.PresencePenalty
	frequencyPenalty := s.FrequencyPenalty

	if isReasoningModel(s.Model) {
		maxCompletionTokens = maxTokens
		maxTokens = 0
		temperature = 0
		topP = 0
		n = 1
		presencePenalty = 0
		frequencyPenalty = 0
	}

	var streamOptions *go_openai.StreamOptions
	if !strings.Contains(s.Model, "mistral") {
		streamOptions = &go_openai.StreamOptions{IncludeUsage: true}
	}

	var logitBias map[string]int
	if len(s.LogitBias) > 0 {
		logitBias = make(map[string]int, len(s.LogitBias))
		for k, v := range s.LogitBias {
			logitBias[k] = v
		}
	}

	log.Debug().
		Str("model", s.Model).
		Int("messages", len(msgs)).
		Int("max_tokens", maxTokens).
		Int("max_completion_tokens", maxCompletionTokens).
		Float64("temperature", temperature).
		Float64("top_p", topP).
		Int("n", n).
		Strs("stop", s.Stop).
		Msg("Making streaming request to openai")

	return &go_openai.ChatCompletionRequest{
		Model:               s.Model,
		Messages:            msgs,
		MaxTokens:           maxTokens,
		MaxCompletionTokens: maxCompletionTokens,
		Temperature:         float32(temperature),
		TopP:                float32(topP),
		N:                   n,
		Stream:              true,
		Stop:                s.Stop,
		StreamOptions:       streamOptions,
		PresencePenalty:     float32(presencePenalty),
		FrequencyPenalty:    float32(frequencyPenalty),
		LogitBias:           logitBias,
	}, nil
}

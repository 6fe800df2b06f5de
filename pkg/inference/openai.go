package inference

import (
	"context"
	"io"
	"strings"

	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// OpenAIStreamer streams chat completions from an OpenAI compatible API.
type OpenAIStreamer struct {
	client    *settings.ClientSettings
	estimator *UsageEstimator
}

type OpenAIStreamerOption func(*OpenAIStreamer)

func WithClientSettings(cs *settings.ClientSettings) OpenAIStreamerOption {
	return func(s *OpenAIStreamer) {
		s.client = cs
	}
}

func WithUsageEstimator(e *UsageEstimator) OpenAIStreamerOption {
	return func(s *OpenAIStreamer) {
		s.estimator = e
	}
}

func NewOpenAIStreamer(options ...OpenAIStreamerOption) *OpenAIStreamer {
	ret := &OpenAIStreamer{
		client:    settings.NewClientSettings(),
		estimator: NewUsageEstimator(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *OpenAIStreamer) makeClient(apiKey string) *go_openai.Client {
	config := go_openai.DefaultConfig(apiKey)
	if s.client.BaseURL != "" {
		config.BaseURL = s.client.BaseURL
	}
	if s.client.Organization != nil {
		config.OrgID = *s.client.Organization
	}
	config.HTTPClient = s.client.GetHTTPClient()
	return go_openai.NewClientWithConfig(config)
}

func (s *OpenAIStreamer) Stream(ctx context.Context, req *Request, h Handler) {
	creq, err := MakeCompletionRequest(req)
	if err != nil {
		h.OnError(StatusInfo{}, ErrorBody(err.Error()))
		return
	}

	stream, err := s.makeClient(req.APIKey).CreateChatCompletionStream(ctx, *creq)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		status, body := describeError(err)
		log.Debug().Err(err).Int("status_code", status.StatusCode).Msg("could not open completion stream")
		h.OnError(status, body)
		return
	}
	defer stream.Close()

	var completion strings.Builder
	var usage *go_openai.Usage

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			h.OnDone(s.tokensUsed(req, usage, completion.String()))
			return
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			status, body := describeError(err)
			log.Debug().Err(err).Int("status_code", status.StatusCode).Msg("completion stream failed")
			h.OnError(status, body)
			return
		}

		if response.Usage != nil {
			usage = response.Usage
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		completion.WriteString(delta)
		h.OnChunk(delta)
	}
}

func (s *OpenAIStreamer) tokensUsed(req *Request, usage *go_openai.Usage, completion string) int {
	if usage != nil && usage.TotalTokens > 0 {
		return usage.TotalTokens
	}
	if s.estimator == nil {
		return 0
	}
	return s.estimator.Estimate(req.Settings.Model, promptMessages(req), completion)
}

var _ Streamer = (*OpenAIStreamer)(nil)

package inference

import (
	"sync"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

const (
	tokensPerMessage = 4
	tokensPerReply   = 3
)

// UsageEstimator counts tokens locally for services that do not report usage
// at the end of a stream.
type UsageEstimator struct {
	mu     sync.Mutex
	codecs map[string]tokenizer.Codec
}

func NewUsageEstimator() *UsageEstimator {
	return &UsageEstimator{codecs: map[string]tokenizer.Codec{}}
}

func (u *UsageEstimator) codec(model string) (tokenizer.Codec, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if c, ok := u.codecs[model]; ok {
		return c, nil
	}
	c, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		c, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return nil, err
		}
	}
	u.codecs[model] = c
	return c, nil
}

// Count returns the number of tokens in s, or an approximation based on
// its length if no codec is available.
func (u *UsageEstimator) Count(model string, s string) int {
	c, err := u.codec(model)
	if err != nil {
		log.Debug().Err(err).Str("model", model).Msg("no tokenizer, approximating token count")
		return (len(s) + 3) / 4
	}
	ids, _, err := c.Encode(s)
	if err != nil {
		return (len(s) + 3) / 4
	}
	return len(ids)
}

// Estimate returns prompt plus completion tokens, counted the way chat
// completion endpoints bill them.
func (u *UsageEstimator) Estimate(model string, prompt conversation.Messages, completion string) int {
	total := tokensPerReply
	for _, m := range prompt {
		total += tokensPerMessage + u.Count(model, string(m.Role)) + u.Count(model, m.Content)
	}
	return total + u.Count(model, completion)
}

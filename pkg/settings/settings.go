package settings

import (
	"os"
	"strings"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel           = "gpt-4o-mini"
	DefaultMaxTokens       = 2048
	DefaultPushToTalkKey   = "ctrl+space"
	DefaultTemperature     = 1.0
	DefaultTopP            = 1.0
	DefaultCompletionCount = 1
)

// Settings are the completion parameters sent with every request, plus the
// local push-to-talk preference that never leaves the client.
type Settings struct {
	Model            string         `yaml:"model" json:"model" mapstructure:"model"`
	Temperature      float64        `yaml:"temperature" json:"temperature" mapstructure:"temperature"`
	TopP             float64        `yaml:"top_p" json:"top_p" mapstructure:"top-p"`
	N                int            `yaml:"n" json:"n" mapstructure:"n"`
	Stop             []string       `yaml:"stop,omitempty" json:"stop,omitempty" mapstructure:"stop"`
	MaxTokens        int            `yaml:"max_tokens" json:"max_tokens" mapstructure:"max-tokens"`
	PresencePenalty  float64        `yaml:"presence_penalty" json:"presence_penalty" mapstructure:"presence-penalty"`
	FrequencyPenalty float64        `yaml:"frequency_penalty" json:"frequency_penalty" mapstructure:"frequency-penalty"`
	LogitBias        map[string]int `yaml:"logit_bias,omitempty" json:"logit_bias,omitempty" mapstructure:"logit-bias"`

	PushToTalkKey string `yaml:"push_to_talk_key" json:"push_to_talk_key" mapstructure:"push-to-talk-key"`
}

func NewSettings() *Settings {
	return &Settings{
		Model:         DefaultModel,
		Temperature:   DefaultTemperature,
		TopP:          DefaultTopP,
		N:             DefaultCompletionCount,
		Stop:          []string{},
		MaxTokens:     DefaultMaxTokens,
		LogitBias:     map[string]int{},
		PushToTalkKey: DefaultPushToTalkKey,
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Model) == "" {
		return errors.New("model is required")
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return errors.Errorf("temperature %v out of range [0, 2]", s.Temperature)
	}
	if s.TopP < 0 || s.TopP > 1 {
		return errors.Errorf("top_p %v out of range [0, 1]", s.TopP)
	}
	if s.N < 1 {
		return errors.Errorf("n must be at least 1, got %d", s.N)
	}
	if s.MaxTokens < 0 {
		return errors.Errorf("max_tokens must not be negative, got %d", s.MaxTokens)
	}
	if s.PresencePenalty < -2 || s.PresencePenalty > 2 {
		return errors.Errorf("presence_penalty %v out of range [-2, 2]", s.PresencePenalty)
	}
	if s.FrequencyPenalty < -2 || s.FrequencyPenalty > 2 {
		return errors.Errorf("frequency_penalty %v out of range [-2, 2]", s.FrequencyPenalty)
	}
	return nil
}

// LoadFromYAML overlays the values found in the YAML file on top of s.
func (s *Settings) LoadFromYAML(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "could not read settings file %s", path)
	}
	if err := yaml.Unmarshal(b, s); err != nil {
		return errors.Wrapf(err, "could not parse settings file %s", path)
	}
	return nil
}

func (s *Settings) ToYAML() ([]byte, error) {
	return yaml.Marshal(s)
}

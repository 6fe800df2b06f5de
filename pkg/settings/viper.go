package settings

import (
	"strings"

	"github.com/go-go-golems/palaver/pkg/security"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Keys are the configuration keys that map onto Settings fields. They are
// shared by flags, the PALAVER_* environment, config files and
// `palaver settings set`.
var Keys = []string{
	"model",
	"temperature",
	"top-p",
	"n",
	"stop",
	"max-tokens",
	"presence-penalty",
	"frequency-penalty",
	"logit-bias",
	"push-to-talk-key",
}

// Set parses value and assigns it to the field named by key.
// Lists are comma separated, logit biases are written as token:bias pairs.
func (s *Settings) Set(key string, value string) error {
	var err error
	switch key {
	case "model":
		s.Model = strings.TrimSpace(value)
	case "temperature":
		s.Temperature, err = cast.ToFloat64E(value)
	case "top-p":
		s.TopP, err = cast.ToFloat64E(value)
	case "n":
		s.N, err = cast.ToIntE(value)
	case "stop":
		s.Stop = splitList(value)
	case "max-tokens":
		s.MaxTokens, err = cast.ToIntE(value)
	case "presence-penalty":
		s.PresencePenalty, err = cast.ToFloat64E(value)
	case "frequency-penalty":
		s.FrequencyPenalty, err = cast.ToFloat64E(value)
	case "logit-bias":
		s.LogitBias, err = parseLogitBias(value)
	case "push-to-talk-key":
		s.PushToTalkKey = strings.TrimSpace(value)
	default:
		return errors.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return errors.Wrapf(err, "invalid value for %s", key)
	}
	return s.Validate()
}

func splitList(value string) []string {
	ret := []string{}
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			ret = append(ret, v)
		}
	}
	return ret
}

func parseLogitBias(value string) (map[string]int, error) {
	ret := map[string]int{}
	for _, pair := range splitList(value) {
		token, bias, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, errors.Errorf("expected token:bias, got %q", pair)
		}
		b, err := cast.ToIntE(strings.TrimSpace(bias))
		if err != nil {
			return nil, err
		}
		ret[strings.TrimSpace(token)] = b
	}
	return ret, nil
}

// UpdateFromViper overlays every key that was set in v (flag, env or config
// file) and reports whether any was.
func (s *Settings) UpdateFromViper(v *viper.Viper) (bool, error) {
	changed := false
	for _, key := range Keys {
		if !v.IsSet(key) {
			continue
		}
		changed = true
		var err error
		switch key {
		case "stop":
			s.Stop = v.GetStringSlice(key)
		case "logit-bias":
			s.LogitBias = map[string]int{}
			for token, bias := range v.GetStringMap(key) {
				if s.LogitBias[token], err = cast.ToIntE(bias); err != nil {
					return false, errors.Wrapf(err, "invalid logit bias for %s", token)
				}
			}
		default:
			err = s.Set(key, v.GetString(key))
		}
		if err != nil {
			return false, err
		}
	}
	if err := s.Validate(); err != nil {
		return false, errors.Wrap(err, "invalid settings")
	}
	return changed, nil
}

// UpdateFromViper reads the connection keys base-url, timeout and
// organization.
func (cs *ClientSettings) UpdateFromViper(v *viper.Viper) error {
	if v.IsSet("base-url") {
		baseURL := strings.TrimSpace(v.GetString("base-url"))
		if baseURL != "" {
			if err := security.ValidateBaseURL(baseURL); err != nil {
				return err
			}
		}
		cs.BaseURL = baseURL
	}
	if v.IsSet("timeout") {
		t := v.GetDuration("timeout")
		if t <= 0 {
			return errors.Errorf("invalid timeout %s", v.GetString("timeout"))
		}
		cs.Timeout = &t
	}
	if v.IsSet("organization") {
		org := v.GetString("organization")
		cs.Organization = &org
	}
	return nil
}

// FromViper overlays v on top of the defaults.
func FromViper(v *viper.Viper) (*Settings, *ClientSettings, error) {
	s := NewSettings()
	if _, err := s.UpdateFromViper(v); err != nil {
		return nil, nil, err
	}
	cs := NewClientSettings()
	if err := cs.UpdateFromViper(v); err != nil {
		return nil, nil, err
	}
	return s, cs, nil
}

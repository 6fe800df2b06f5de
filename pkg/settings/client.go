package settings

import (
	"net/http"
	"time"

	"github.com/go-go-golems/palaver/pkg/helpers"
	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

const DefaultTimeout = 60 * time.Second

// ClientSettings configure the HTTP side of the completion client.
type ClientSettings struct {
	BaseURL      string         `yaml:"base_url,omitempty" mapstructure:"base-url"`
	Timeout      *time.Duration `yaml:"timeout,omitempty"`
	Organization *string        `yaml:"organization,omitempty" mapstructure:"organization"`
	HTTPClient   *http.Client   `yaml:"-" json:"-"`
}

func NewClientSettings() *ClientSettings {
	return &ClientSettings{
		Timeout: helpers.Ptr(DefaultTimeout),
	}
}

// UnmarshalYAML reads timeout as a number of seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias ClientSettings
	aux := &struct {
		Timeout *int `yaml:"timeout,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(cs),
	}
	if err := value.Decode(aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		t := time.Duration(*aux.Timeout) * time.Second
		cs.Timeout = &t
	}
	return nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

// GetHTTPClient returns the configured client, or a fresh one honoring Timeout.
func (cs *ClientSettings) GetHTTPClient() *http.Client {
	if cs.HTTPClient != nil {
		return cs.HTTPClient
	}
	return &http.Client{Timeout: helpers.Deref(cs.Timeout, DefaultTimeout)}
}

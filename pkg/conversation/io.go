package conversation

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromFilename picks the format from the file extension, defaulting to JSON.
func FormatFromFilename(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadFromFile reads a conversation from a JSON or YAML file.
func LoadFromFile(filename string) (*Conversation, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	return Decode(f, FormatFromFilename(filename))
}

func Decode(r io.Reader, format Format) (*Conversation, error) {
	var c Conversation
	var err error
	switch format {
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&c)
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&c)
	default:
		return nil, errors.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode %s conversation", format)
	}
	if c.ID.IsZero() {
		c.ID = NewConversationID()
	}
	for _, m := range c.Messages {
		if m.ID.IsZero() {
			m.ID = NewMessageID()
		}
	}
	if c.Messages == nil {
		c.Messages = Messages{}
	}
	return &c, nil
}

func Encode(w io.Writer, c *Conversation, format Format) error {
	switch format {
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(c); err != nil {
			return err
		}
		return encoder.Close()
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(c)
	default:
		return errors.Errorf("unknown format %q", format)
	}
}

// SaveToFile writes the conversation, choosing the format from the extension.
func SaveToFile(filename string, c *Conversation) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	return Encode(f, c, FormatFromFilename(filename))
}

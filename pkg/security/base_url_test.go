package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBaseURL(t *testing.T) {
	for _, ok := range []string{
		"https://api.openai.com/v1",
		"https://10.0.0.1/v1",
		"http://localhost:11434/v1",
		"http://127.0.0.1:8080/v1",
		"http://[::1]:8080/v1",
		"http://192.168.1.20/v1",
		"http://gpu-box.local/v1",
		"http://[fe80::1%25eth0]/v1",
	} {
		assert.NoError(t, ValidateBaseURL(ok), ok)
	}

	for _, bad := range []string{
		"http://api.openai.com/v1",
		"http://8.8.8.8/v1",
		"ftp://localhost/v1",
		"https:///v1",
		"://nope",
	} {
		assert.Error(t, ValidateBaseURL(bad), bad)
	}
}

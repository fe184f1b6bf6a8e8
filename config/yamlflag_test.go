package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type yamlFlagTestPayload struct {
	Foo string
	Bar []string
}

func TestYamlFlagSet(t *testing.T) {
	var field *yamlFlagTestPayload
	f := newYamlFlag(&field)

	require.NoError(t, f.Set(`{foo: hello, bar: [world, "1"]}`))
	assert.Equal(t, "hello", field.Foo)
	assert.Equal(t, []string{"world", "1"}, field.Bar)
}

func TestYamlFlagSetInvalid(t *testing.T) {
	var field *yamlFlagTestPayload
	f := newYamlFlag(&field)
	assert.Error(t, f.Set("this is not valid yaml: [["))
}

func TestYamlFlagSetEmpty(t *testing.T) {
	var field *yamlFlagTestPayload
	f := newYamlFlag(&field)
	require.NoError(t, f.Set(""))
	assert.Equal(t, &yamlFlagTestPayload{}, field)
}

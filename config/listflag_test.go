package config

import (
	"testing"

	"gopkg.in/yaml.v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFlagCommaSeparator(t *testing.T) {
	f := commaListFlag()
	require.NoError(t, f.Set("foo,bar,baz"))
	assert.Equal(t, []string{"foo", "bar", "baz"}, f.values)
	assert.Equal(t, "foo,bar,baz", f.String())
}

func TestListFlagRestrictedValues(t *testing.T) {
	good := commaListFlag("foo", "bar", "baz")
	require.NoError(t, good.Set("foo,bar"))

	bad := commaListFlag("foo", "bar")
	assert.Error(t, bad.Set("foo,qux"))
}

func TestListFlagUnmarshalYAML(t *testing.T) {
	const yamlList = "- foo\n- bar\n- baz"
	f := commaListFlag()
	require.NoError(t, yaml.Unmarshal([]byte(yamlList), f))
	assert.Equal(t, []string{"foo", "bar", "baz"}, f.values)
	assert.Equal(t, "foo,bar,baz", f.value)
}

func TestListFlagEmptyValue(t *testing.T) {
	f := commaListFlag()
	require.NoError(t, f.Set(""))
	assert.Empty(t, f.value)
	assert.Nil(t, f.values)
}

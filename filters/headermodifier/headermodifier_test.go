package headermodifier

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentgateway/agentgateway/model"
)

func TestApplyOrderIsRemoveSetAdd(t *testing.T) {
	h := http.Header{}
	h.Set("X-Old", "1")
	h.Set("X-Keep", "keep")
	mod := &model.HeaderModifier{
		Remove: []string{"X-Old"},
		Set:    []model.HeaderKV{{Name: "X-Set", Value: "set"}},
		Add:    []model.HeaderKV{{Name: "X-Set", Value: "added"}},
	}
	Apply(h, mod)

	assert.Empty(t, h.Get("X-Old"))
	assert.Equal(t, "keep", h.Get("X-Keep"))
	assert.Equal(t, []string{"set", "added"}, h.Values("X-Set"))
}

func TestSetIsIdempotent(t *testing.T) {
	h := http.Header{}
	mod := &model.HeaderModifier{Set: []model.HeaderKV{{Name: "X-A", Value: "v"}}}
	Apply(h, mod)
	Apply(h, mod)
	assert.Equal(t, []string{"v"}, h.Values("X-A"))
}

func TestAddIsAdditive(t *testing.T) {
	h := http.Header{}
	mod := &model.HeaderModifier{Add: []model.HeaderKV{{Name: "X-A", Value: "v"}}}
	Apply(h, mod)
	Apply(h, mod)
	Apply(h, mod)
	assert.Equal(t, []string{"v", "v", "v"}, h.Values("X-A"))
}

func TestRemoveIsIdempotent(t *testing.T) {
	h := http.Header{}
	h.Set("X-A", "v")
	mod := &model.HeaderModifier{Remove: []string{"X-A"}}
	Apply(h, mod)
	Apply(h, mod)
	assert.Empty(t, h.Values("X-A"))
}

func TestProtectedNamesIgnoreRemoval(t *testing.T) {
	h := http.Header{}
	h.Set("Host", "example.com")
	mod := &model.HeaderModifier{Remove: []string{"Host", ":method"}}
	Apply(h, mod)
	assert.Equal(t, "example.com", h.Get("Host"))
}

func TestCaseInsensitiveNameMatch(t *testing.T) {
	h := http.Header{}
	h.Set("X-Custom", "v")
	mod := &model.HeaderModifier{Remove: []string{"x-custom"}}
	Apply(h, mod)
	assert.Empty(t, h.Values("X-Custom"))
}

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropertiesOnly_StripsIdentityKeys(t *testing.T) {
	item := map[string]any{
		"id":     "Q1",
		"name":   map[string]any{"en": []string{"Example"}},
		"source": "Q1",
		"target": "Q2",
		"period": "2020-2021",
	}
	out := propertiesOnly(item)
	assert.Equal(t, map[string]any{"period": "2020-2021"}, out)
}

func TestPropertiesOnly_EmptyInput(t *testing.T) {
	assert.Empty(t, propertiesOnly(map[string]any{}))
}

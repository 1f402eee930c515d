package internal

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/wintermute/internal/apperr"
	"github.com/starford/wintermute/internal/testutil"
)

func TestConvert_WritesStoryJSON(t *testing.T) {
	html := testutil.StoryHTML("Sprawl", "1",
		testutil.Passage{PID: "1", Name: "Chiba", Text: "{{a}}{{b}}deep{{/b}}{{/a}} [[Ninsei]]"},
	)
	cfg := NewDefaultConfig()
	cfg.Convert.MaxPropDepth = 1

	var out bytes.Buffer
	require.NoError(t, Convert(strings.NewReader(html), &out, WithConfig(cfg)))

	got := out.String()
	assert.True(t, strings.HasSuffix(got, "}\n"))
	assert.Contains(t, got, `"props":{"a":"{{b}}deep{{/b}}"}`)
	assert.Contains(t, got, `{"name":"Ninsei","link":"Ninsei","broken":true}`)
}

func TestConvert_Pretty(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Convert.Pretty = true

	var out bytes.Buffer
	require.NoError(t, Convert(strings.NewReader(testutil.StoryHTML("Empty", "")), &out, WithConfig(cfg)))
	assert.True(t, strings.HasPrefix(out.String(), "{\n  \"passages\": []"))
}

func TestConvert_NoStoryData(t *testing.T) {
	err := Convert(strings.NewReader("<html></html>"), &bytes.Buffer{}, WithConfig(NewDefaultConfig()))
	assert.True(t, errors.Is(err, apperr.ErrInvalidStory))
}

func TestConvert_RequiresConfig(t *testing.T) {
	err := Convert(strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}

package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/wintermute/internal/apperr"
	"github.com/starford/wintermute/internal/models"
	"github.com/starford/wintermute/internal/story"
)

const published = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Sprawl</title>
<script>if (a < b && c) { run(); }</script>
</head>
<body>
<tw-storydata name="Sprawl" startnode="1" creator="Twine" creator-version="2.6.2" ifid="D674C58C-DEFA-4F70-B7A2-27742230C0FC" format="Harlowe" options hidden>
<style role="stylesheet" id="twine-user-stylesheet" type="text/twine-css"></style>
<script role="script" id="twine-user-script" type="text/twine-javascript"></script>
<tw-passagedata pid="1" name="Chiba" tags="city night" position="100,200" size="100,100">The sky &amp; the port. [[Leave-&gt;Freeside]] or [[Stay]]
{{mood}}grim{{/mood}}</tw-passagedata>
<tw-passagedata pid="2" name="Freeside" tags="" position="300.5,200">Orbit.&nbsp;<b>Bold</b> [[Chiba]]</tw-passagedata>
</tw-storydata>
<script>/* story format runtime */ var x = 1 < 2;</script>
</body>
</html>`

func TestParse_FindsStoryData(t *testing.T) {
	root, err := Parse(strings.NewReader(published))
	require.NoError(t, err)
	assert.Equal(t, story.StoryTag, root.Tag())

	name, ok := root.Attr("name")
	assert.True(t, ok)
	assert.Equal(t, "Sprawl", name)

	_, ok = root.Attr("missing")
	assert.False(t, ok)

	assert.Len(t, root.Children(story.PassageTag), 2)
	assert.Len(t, root.Children("style"), 1)
}

func TestParse_NoStoryData(t *testing.T) {
	_, err := Parse(strings.NewReader("<html><body>nothing here</body></html>"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoStoryData))
	assert.True(t, errors.Is(err, apperr.ErrInvalidStory))
}

func TestParse_IgnoresSimilarTags(t *testing.T) {
	_, err := ParseBytes([]byte("<tw-storydatax></tw-storydatax>"))
	assert.ErrorIs(t, err, ErrNoStoryData)
}

func TestInnerText_ReescapesMarkup(t *testing.T) {
	root, err := Parse(strings.NewReader(published))
	require.NoError(t, err)
	passages := root.Children(story.PassageTag)

	first := passages[0].InnerText()
	assert.Contains(t, first, "The sky &amp; the port.")
	assert.Contains(t, first, "[[Leave-&gt;Freeside]]")
	assert.Contains(t, first, "\n{{mood}}grim{{/mood}}")

	second := passages[1].InnerText()
	assert.Equal(t, "Orbit.&nbsp;<b>Bold</b> [[Chiba]]", second)
}

func TestConvert_PublishedStory(t *testing.T) {
	s, err := Convert(strings.NewReader(published), story.Builder{})
	require.NoError(t, err)

	assert.Equal(t, "Sprawl", s.Name)
	assert.Equal(t, "1", s.StartNode)
	assert.Equal(t, "Twine", s.Creator)
	assert.Equal(t, "2.6.2", s.CreatorVersion)
	require.Len(t, s.Passages, 2)

	chiba := s.Passages[0]
	assert.Equal(t, []string{"city", "night"}, chiba.Tags)
	assert.Equal(t, models.Position{X: "100", Y: "200"}, chiba.Position)
	assert.Equal(t, []models.Link{
		{Name: "Leave", Link: "Freeside", PID: "2"},
		{Name: "Stay", Link: "Stay", Broken: true},
	}, chiba.Links)
	mood, ok := chiba.Props.Get("mood")
	require.True(t, ok)
	assert.Equal(t, "grim", mood.Text)

	freeside := s.Passages[1]
	assert.Equal(t, []string{}, freeside.Tags)
	assert.Equal(t, models.Position{X: "300.5", Y: "200"}, freeside.Position)
	assert.Equal(t, []models.Link{{Name: "Chiba", Link: "Chiba", PID: "1"}}, freeside.Links)
}

func TestConvert_ArchiveFirstStoryWins(t *testing.T) {
	archive := `<tw-storydata name="One" startnode="1"><tw-passagedata pid="1" name="A">a</tw-passagedata></tw-storydata>
<tw-storydata name="Two" startnode="1"><tw-passagedata pid="1" name="B">b</tw-passagedata></tw-storydata>`
	s, err := ConvertBytes([]byte(archive), story.Builder{})
	require.NoError(t, err)
	assert.Equal(t, "One", s.Name)
	require.Len(t, s.Passages, 1)
	assert.Equal(t, "A", s.Passages[0].Name)
}

func TestConvert_UnterminatedStoryData(t *testing.T) {
	s, err := ConvertBytes([]byte(`<tw-storydata name="Cut"></tw-storydata`), story.Builder{})
	if err != nil {
		assert.ErrorIs(t, err, apperr.ErrInvalidStory)
		return
	}
	assert.Equal(t, "Cut", s.Name)
}

func TestConvert_EmptyStory(t *testing.T) {
	s, err := ConvertBytes([]byte(`<tw-storydata></tw-storydata>`), story.Builder{})
	require.NoError(t, err)
	data, err := models.MarshalStory(s, false)
	require.NoError(t, err)
	assert.Equal(t, `{"passages":[],"name":"","startnode":"","creator":"","creatorVersion":"","ifid":""}`, string(data))
}

func TestConvert_UserScriptWithMarkupCharacters(t *testing.T) {
	page := `<html><body>
<tw-storydata name="Scripted" startnode="1" hidden>
<style role="stylesheet" id="twine-user-stylesheet" type="text/twine-css">tw-link > b { content: "<"; }</style>
<script role="script" id="twine-user-script" type="text/twine-javascript">if (a < b && c) { x = a<b; }</script>
<script role="script"/>
<tw-passagedata pid="1" name="Start" position="1,1">Go [[Next]]</tw-passagedata>
<tw-passagedata pid="2" name="Next" position="2,2">Done &lt;b&gt;</tw-passagedata>
</tw-storydata>
</body></html>`

	s, err := Convert(strings.NewReader(page), story.Builder{})
	require.NoError(t, err)
	require.Len(t, s.Passages, 2)
	assert.Equal(t, []models.Link{{Name: "Next", Link: "Next", PID: "2"}}, s.Passages[0].Links)
	assert.Equal(t, "Done &lt;b&gt;", s.Passages[1].Text)
}

func TestBlankRawText(t *testing.T) {
	in := []byte(`<a><SCRIPT type="x">1 < 2</SCRIPT><style>a<b</style><script/><p>keep</p><script>open < end`)
	want := `<a><SCRIPT type="x"></SCRIPT><style></style><script/><p>keep</p><script>`
	assert.Equal(t, want, string(blankRawText(in)))

	untouched := []byte(`<p>no raw text</p>`)
	assert.Equal(t, string(untouched), string(blankRawText(untouched)))
}

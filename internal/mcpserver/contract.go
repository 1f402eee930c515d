package mcpserver

// MarkupContract describes the passage markup the converter understands and
// the JSON graph it produces, for LLM consumers writing or reading stories.
const MarkupContract = `# Wintermute Markup Contract

Stories are published Twine 2 HTML files. Only the first ` + "`" + `<tw-storydata>` + "`" + `
element is read; every direct ` + "`" + `<tw-passagedata>` + "`" + ` child becomes one passage.

## Story attributes

` + "```" + `html
<tw-storydata name="Neuromancer" startnode="1" creator="Twine"
              creator-version="2.6.2" ifid="D674C58C-...">
  <tw-passagedata pid="1" name="Chiba" tags="city night" position="100,200">
    ...passage text...
  </tw-passagedata>
</tw-storydata>
` + "```" + `

- ` + "`" + `name` + "`" + `, ` + "`" + `startnode` + "`" + `, ` + "`" + `creator` + "`" + `, ` + "`" + `creator-version` + "`" + ` and ` + "`" + `ifid` + "`" + ` are copied as-is.
- ` + "`" + `tags` + "`" + ` is split on whitespace.
- ` + "`" + `position` + "`" + ` is split on the first comma into ` + "`" + `x` + "`" + ` and ` + "`" + `y` + "`" + ` strings.

## Links

- ` + "`" + `[[Freeside]]` + "`" + ` links to the passage named Freeside.
- ` + "`" + `[[Take the shuttle->Freeside]]` + "`" + ` shows "Take the shuttle" and links to Freeside.
  Inside published HTML the arrow is escaped as ` + "`" + `-&gt;` + "`" + `; both forms work.
- A link never spans a line break. The first arrow splits display text from target.
- Targets are matched against passage names exactly. A link whose target
  does not exist is reported as broken.

## Metadata

Passages carry metadata in tag blocks:

` + "```" + `
{{mood}}tense{{/mood}}
{{npc}}{{name}}Case{{/name}}{{role}}hacker{{/role}}{{/npc}}
` + "```" + `

- The closing tag repeats the key exactly.
- Line breaks inside a value are removed.
- A value holding further blocks becomes a nested object.
- A repeated key keeps its first position and takes the last value.

## Output

` + "```" + `json
{
  "passages": [
    {
      "text": "...",
      "links": [{"name": "Take the shuttle", "link": "Freeside", "pid": "2"}],
      "props": {"mood": "tense"},
      "name": "Chiba",
      "pid": "1",
      "position": {"x": "100", "y": "200"},
      "tags": ["city", "night"]
    }
  ],
  "name": "Neuromancer",
  "startnode": "1",
  "creator": "Twine",
  "creatorVersion": "2.6.2",
  "ifid": "D674C58C-..."
}
` + "```" + `

Broken links carry ` + "`" + `"broken": true` + "`" + ` instead of ` + "`" + `pid` + "`" + `.

## Importing

- Use the ` + "`" + `import_story` + "`" + ` tool with an http(s) URL or a base64 ` + "`" + `data:text/html` + "`" + ` URI.
- Library files end with ` + "`" + `.html` + "`" + ` or ` + "`" + `.htm` + "`" + ` and use forward slashes.
- Without an explicit filename the file is named after the story.
`

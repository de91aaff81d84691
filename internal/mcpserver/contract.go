package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/kiln/internal/collection"
)

// contentFormat describes the source formats the pipeline compiles. The
// per-collection part is appended by ContentFormat.
const contentFormat = `# Kiln Content Format

Sources live under the content root and are matched to collections by
glob pattern. Markdown files carry YAML frontmatter; annotated scripts
(Python, R) carry their metadata in a leading docstring or comment block.

## Markdown

` + "```" + `markdown
---
title: Hello world            # used for the slug unless slug is set
date: 2024-05-01              # ISO-8601 date or datetime
tags: [go, web]
description: One **inline** sentence.
draft: true                   # hidden in production builds
---

Body in CommonMark.
` + "```" + `

## Directives

- Container: ` + "`" + `:::name[label]{key=value}` + "`" + ` ... ` + "`" + `:::` + "`" + ` wraps block content.
  Nested containers need a longer fence on the outer block.
- Leaf: ` + "`" + `::name[label]{key=value}` + "`" + ` on its own line.
- Inline: ` + "`" + `:name[label]{key=value}` + "`" + ` inside text.

Every directive becomes a custom element named after it. Unknown names are
kept; malformed ones render as literal text.

## Code block annotations

Inside fenced code, a comment line of the form ` + "`" + `// !name(range) query` + "`" + `
(or ` + "`" + `#` + "`" + `, ` + "`" + `--` + "`" + `, ` + "`" + `/*` + "`" + `, ` + "`" + `<!--` + "`" + ` comments) annotates the following code
and is removed from the rendered block. Known names: callout, ref, mark,
diff, collapse, focus, class-name, hover, caption, filename. Leading
` + "`" + `#| key: value` + "`" + ` lines set the block's caption, filename and ref. Fence
languages go through the alias table.

## Table of contents

Headings get ids from a per-document slugifier (` + "`" + `intro` + "`" + `, ` + "`" + `intro-1` + "`" + `, ...).
A precomputed list may be supplied between ` + "`" + `BEGIN_TOC` + "`" + ` and ` + "`" + `END_TOC` + "`" + `
markers, one ` + "`" + `- title|slug|depth` + "`" + ` entry per line; the block is stripped
from the rendered content.
`

// ContentFormat returns the content format description followed by the
// field schema of every collection in defs.
func ContentFormat(defs []collection.Definition) string {
	var b strings.Builder
	b.WriteString(contentFormat)
	if len(defs) == 0 {
		return b.String()
	}
	b.WriteString("\n## Collections\n")
	for _, def := range defs {
		kind := "list"
		switch {
		case def.Single:
			kind = "single"
		case def.GroupBy != "":
			kind = "grouped by " + def.GroupBy
		}
		fmt.Fprintf(&b, "\n### %s\n\nPattern `%s`, %s.\n\n", def.Name, def.Pattern, kind)
		for _, name := range def.Schema.Names() {
			f := def.Schema[name]
			req := "optional"
			if f.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "- `%s` (%s, %s)", name, f.Type, req)
			if len(f.Values) > 0 {
				fmt.Fprintf(&b, " one of %s", strings.Join(f.Values, ", "))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

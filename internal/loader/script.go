package loader

import (
	"regexp"
	"strings"
)

var (
	docstringRe = regexp.MustCompile(`^(?s)("""|''')(.*?)("""|''')`)
	titleLineRe = regexp.MustCompile(`(?m)^\s*title:\s*(.+)$`)
)

// splitDocstring extracts the leading triple-quoted metadata block of a
// script. Only a `title:` line is read; anything else in the block is
// ignored, so malformed metadata degrades to an empty title.
func splitDocstring(content string) (title, code string) {
	m := docstringRe.FindStringSubmatchIndex(content)
	if m == nil || content[m[2]:m[3]] != content[m[6]:m[7]] {
		return "", content
	}
	block := content[m[4]:m[5]]
	if t := titleLineRe.FindStringSubmatch(block); t != nil {
		title = strings.TrimSpace(t[1])
	}
	return title, strings.TrimSpace(content[m[1]:])
}

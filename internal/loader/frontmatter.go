package loader

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. Without a closing delimiter the entire content is
// body. Invalid YAML also yields the whole content as body, with yamlErr set
// so the caller can report it.
func splitFrontmatter(data []byte) (fm map[string]any, body string, yamlErr error) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(frontmatterDelim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(frontmatterDelim):]
	idx := bytes.Index(rest, []byte("\n"+frontmatterDelim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(frontmatterDelim):]
	// Drop the remainder of the closing delimiter line.
	if nl := bytes.IndexByte(afterDelim, '\n'); nl >= 0 && len(bytes.TrimSpace(afterDelim[:nl])) == 0 {
		afterDelim = afterDelim[nl+1:]
	}
	body = strings.TrimLeft(string(afterDelim), "\n\r")

	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data), err
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return fm, body, nil
}

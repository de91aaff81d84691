package toc

import (
	"strconv"
	"strings"

	"github.com/starford/kiln/internal/models"
)

// Sidecar block markers.
const (
	BeginMarker = "BEGIN_TOC"
	EndMarker   = "END_TOC"
)

// sidecarBounds locates the marker block. ok is false unless both markers
// are present in order.
func sidecarBounds(body string) (begin, end int, ok bool) {
	begin = strings.Index(body, BeginMarker)
	if begin < 0 {
		return 0, 0, false
	}
	rel := strings.Index(body[begin:], EndMarker)
	if rel < 0 {
		return 0, 0, false
	}
	return begin, begin + rel, true
}

// HasSidecar reports whether body carries a complete sidecar block.
func HasSidecar(body string) bool {
	_, _, ok := sidecarBounds(body)
	return ok
}

// ParseSidecar reads the `- title|slug|depth` lines between the markers.
// Missing markers give an empty list and malformed lines are skipped.
func ParseSidecar(body string) []Item {
	begin, end, ok := sidecarBounds(body)
	if !ok {
		return nil
	}
	var items []Item
	for _, line := range strings.Split(body[begin+len(BeginMarker):end], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			continue
		}
		depth, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			continue
		}
		items = append(items, Item{
			Title: strings.Trim(parts[0], "- "),
			Slug:  strings.TrimSpace(parts[1]),
			Depth: depth,
		})
	}
	return items
}

// Sidecar parses and renders the sidecar block of body.
func Sidecar(body string, render RenderFunc) []models.Heading {
	return FromItems(ParseSidecar(body), render)
}

// StripSidecar removes the sidecar block from body, together with the HTML
// comment wrapping it when there is one.
func StripSidecar(body string) string {
	begin, end, ok := sidecarBounds(body)
	if !ok {
		return body
	}
	stop := end + len(EndMarker)
	if open := strings.LastIndex(body[:begin], "<!--"); open >= 0 && strings.TrimSpace(body[open+4:begin]) == "" {
		if closeAt := strings.Index(body[stop:], "-->"); closeAt >= 0 && strings.TrimSpace(body[stop:stop+closeAt]) == "" {
			begin, stop = open, stop+closeAt+3
		}
	}
	return body[:begin] + strings.TrimLeft(body[stop:], "\r\n")
}

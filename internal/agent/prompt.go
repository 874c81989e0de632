package agent

import (
	"strings"
)

const (
	imageOpen  = "<image_url>"
	imageClose = "</image_url>"
)

var (
	escaper = strings.NewReplacer(
		`<\`, `<\\`,
		imageOpen, `<\image_url>`,
		imageClose, `<\/image_url>`,
	)
	unescaper = strings.NewReplacer(
		`<\\`, `<\`,
		`<\image_url>`, imageOpen,
		`<\/image_url>`, imageClose,
	)
)

// SegmentType discriminates prompt segments.
type SegmentType int

const (
	SegmentText SegmentType = iota
	SegmentImage
)

// Segment is a contiguous piece of a normalized prompt.
type Segment struct {
	Type  SegmentType
	Text  string
	Image string
}

// EscapeText makes caller-supplied text safe to embed in a prompt next to
// image markers. Marker tags inside s no longer parse as markers, and
// SplitPrompt restores the original text.
func EscapeText(s string) string {
	return escaper.Replace(s)
}

// UnescapeText reverses EscapeText.
func UnescapeText(s string) string {
	return unescaper.Replace(s)
}

// ImageMarker encodes an image reference inside a prompt string.
func ImageMarker(url string) string {
	return imageOpen + EscapeText(url) + imageClose
}

// SplitPrompt recovers the ordered text and image segments of a prompt built
// with EscapeText and ImageMarker. Segment values are unescaped. Newlines
// that only separated a marker from its neighbours are dropped; empty text
// segments are omitted.
func SplitPrompt(prompt string) []Segment {
	var segments []Segment
	rest := prompt

	for {
		start := strings.Index(rest, imageOpen)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+len(imageOpen):], imageClose)
		if end < 0 {
			break
		}
		end += start + len(imageOpen)

		segments = appendText(segments, rest[:start], true)
		segments = append(segments, Segment{
			Type:  SegmentImage,
			Image: UnescapeText(rest[start+len(imageOpen) : end]),
		})
		rest = rest[end+len(imageClose):]
	}

	return appendText(segments, rest, false)
}

// HasImages reports whether the prompt carries any image marker.
func HasImages(prompt string) bool {
	for _, seg := range SplitPrompt(prompt) {
		if seg.Type == SegmentImage {
			return true
		}
	}
	return false
}

func appendText(segments []Segment, text string, beforeImage bool) []Segment {
	if len(segments) > 0 && segments[len(segments)-1].Type == SegmentImage {
		text = strings.TrimPrefix(text, "\n")
	}
	if beforeImage {
		text = strings.TrimSuffix(text, "\n")
	}
	if text == "" {
		return segments
	}
	return append(segments, Segment{Type: SegmentText, Text: UnescapeText(text)})
}

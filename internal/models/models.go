package models

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one the adapter accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// ContentKind discriminates the Content variants.
type ContentKind int

const (
	// ContentText holds a plain string kept verbatim.
	ContentText ContentKind = iota
	// ContentParts holds an ordered sequence of typed parts.
	ContentParts
)

// Content is a message body: either plain text or an ordered list of parts.
type Content struct {
	Kind  ContentKind
	Text  string
	Parts []Part
}

// TextContent builds a plain text Content.
func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// PartsContent builds a multi-part Content.
func PartsContent(parts ...Part) Content {
	return Content{Kind: ContentParts, Parts: parts}
}

// ImageCount returns the number of image parts in the content.
func (c Content) ImageCount() int {
	if c.Kind != ContentParts {
		return 0
	}
	n := 0
	for _, p := range c.Parts {
		if p.Type == PartImageURL {
			n++
		}
	}
	return n
}

// PartType discriminates the Part variants.
type PartType int

const (
	// PartUnknown is any part type the adapter does not understand. Ignored.
	PartUnknown PartType = iota
	PartText
	PartImageURL
)

// Part is one element of a multi-part message.
type Part struct {
	Type     PartType
	Text     string
	ImageURL ImageURL
	// RawType keeps the wire type of unknown parts for diagnostics.
	RawType string
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ImagePart builds an image reference part.
func ImagePart(url string) Part {
	return Part{Type: PartImageURL, ImageURL: ImageURL{URL: url}}
}

// ImageURL references an image by http(s) URL or data URI.
type ImageURL struct {
	URL    string
	Detail string
}

// Usage records token accounting information.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ModelInfo describes a publishable model identifier.
type ModelInfo struct {
	ID      string
	Created int64
	OwnedBy string
}

package stream

import "encoding/json"

// Kind identifies the closed set of upstream event variants. Every decoded
// frame maps to exactly one Kind; downstream translation switches over it
// instead of probing parsed maps for field presence.
type Kind int

const (
	// KindMalformed marks a frame whose payload could not be parsed. Never
	// fatal: one corrupt frame must not abort an otherwise healthy stream.
	KindMalformed Kind = iota
	// KindBlank marks an empty frame or an empty data payload.
	KindBlank
	// KindDelta carries a non-empty message fragment.
	KindDelta
	// KindSuccessEmpty is a payload whose message field is present but empty.
	KindSuccessEmpty
	// KindSuccessNoMessage is a well-formed payload without a message field.
	KindSuccessNoMessage
	// KindDone is the literal [DONE] marker frame.
	KindDone
)

// Event is the parsed form of one upstream frame.
type Event struct {
	Kind Kind
	Role string
	Text string
}

// framePayload mirrors the upstream frame body. Message is a pointer so an
// absent field is distinguishable from an empty string: the upstream signals
// end-of-turn both ways.
type framePayload struct {
	Role    string  `json:"role"`
	Message *string `json:"message"`
	Action  string  `json:"action"`
	Created int64   `json:"created"`
}

// classify maps one stripped frame payload onto the event variant.
func classify(data string) Event {
	if data == "" {
		return Event{Kind: KindBlank}
	}
	if data == doneMarker {
		return Event{Kind: KindDone}
	}
	var payload framePayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return Event{Kind: KindMalformed}
	}
	switch {
	case payload.Message == nil:
		return Event{Kind: KindSuccessNoMessage}
	case *payload.Message == "":
		return Event{Kind: KindSuccessEmpty, Role: payload.Role}
	default:
		return Event{Kind: KindDelta, Role: payload.Role, Text: *payload.Message}
	}
}

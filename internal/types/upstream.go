package types

// MessageTurn is one turn of the conversation as the upstream expects it.
// Immutable once built by normalization; system roles never appear here.
type MessageTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UpstreamPayload is the body of a chat request to the upstream service.
type UpstreamPayload struct {
	Model    string        `json:"model"`
	Messages []MessageTurn `json:"messages"`
}

package core

// ChatMessage is the payload of an EventChatMessage.
type ChatMessage struct {
	Text           string `json:"text"`
	Username       string `json:"username"`
	SourceLanguage string `json:"source_language"`
}

package llm

import (
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/J12003LPZ/Chatbot/store"
)

// imageMarkerPrefix tags stored user messages that carried an image. The
// marker is for display history only and is stripped before the prompt.
const imageMarkerPrefix = "[IMAGE ATTACHED] "

// BuildPrompt converts stored history into API messages: the last window
// turns in insertion order, with system rows carrying attachment excerpts
// forwarded as system messages. When imageData (base64 JPEG) is present it
// is attached to the final user turn as multimodal content.
func BuildPrompt(history []*store.Message, window int, imageData string) []openai.ChatCompletionMessage {
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	lastUserIdx := -1
	for _, msg := range history {
		content := msg.Content
		switch msg.Role {
		case store.MessageRoleUser:
			content = strings.TrimPrefix(content, imageMarkerPrefix)
			lastUserIdx = len(messages)
		case store.MessageRoleSystem:
			// Attachment excerpts ride along as system context.
			if msg.AttachmentExcerpt != "" && content == "" {
				content = msg.AttachmentExcerpt
			}
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: content,
		})
	}

	if imageData != "" && lastUserIdx >= 0 {
		messages[lastUserIdx] = withImage(messages[lastUserIdx], imageData)
	}

	return messages
}

// withImage rewrites a text message as multimodal content with an inline
// data URL, which is what OpenRouter vision models expect.
func withImage(msg openai.ChatCompletionMessage, imageData string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: msg.Role,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: msg.Content,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/jpeg;base64," + imageData,
				},
			},
		},
	}
}

package provider

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is an inline picture attached to a message.
type Image struct {
	Data     []byte
	MIMEType string // defaults to image/png
	// Detail is passed through as the image_url detail hint.
	Detail string
}

type Message struct {
	Role    Role
	Content string
	Images  []Image
}

func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

func User(content string, images ...Image) Message {
	return Message{Role: RoleUser, Content: content, Images: images}
}

// Request is one completion call.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Provider sends a completion request to a reasoning service and returns
// the reply text. Errors are *Error values when the failure could be
// classified.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
	ModelName() string
	Models(ctx context.Context) ([]string, error)
}

package chatpants

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
)

// fakeLLM implements LLM for tests. Replies are dequeued in call order; when
// the queue is empty the last reply repeats. A non-nil err fails every call.
type fakeLLM struct {
	replies []string
	err     error
	calls   []openai.ChatCompletionNewParams
}

func (f *fakeLLM) New(_ context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	reply := ""
	if len(f.replies) > 0 {
		reply = f.replies[0]
		if len(f.replies) > 1 {
			f.replies = f.replies[1:]
		}
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: reply}},
		},
	}, nil
}

// messageText flattens the content of all messages in a request for
// substring assertions on the prompt.
func messageText(params openai.ChatCompletionNewParams) string {
	var b strings.Builder
	for _, msg := range params.Messages {
		switch {
		case msg.OfSystem != nil:
			b.WriteString(msg.OfSystem.Content.OfString.Value)
		case msg.OfUser != nil:
			b.WriteString(msg.OfUser.Content.OfString.Value)
		case msg.OfAssistant != nil:
			b.WriteString(msg.OfAssistant.Content.OfString.Value)
		}
		b.WriteString("\n")
	}
	return b.String()
}

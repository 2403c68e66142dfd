package chatpants

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// System instructions for the general conversational path.
const (
	// elicitationInstruction drives the phase-1 information-gathering
	// conversation under the normal group.
	elicitationInstruction = "You are a pants shopping assistant. Your goal is to guide the user through a conversation to collect their body data (height, weight, other sizes) and their style preference and feeling about your recommendation (e.g., sports leggings, fashion jeans, etc). Be friendly and proactive in asking questions to help make recommendations later. If they haven't told you about their body data or preference and feeling, keep asking until they tell you this key information."

	neutralInstruction = "You are a helpful chatbot assistant."
)

// exampleConversation is the few-shot block shared by the synthesizer prompts.
const exampleConversation = `[
    { "role": "user", "content": "hi" },
    { "role": "assistant", "content": "Hello! I am a chatbot assistant that can give you some advice on your pants purchase! Could you please tell me your height and weight, so that I can know which kind of size will suit you well?" },
    { "role": "user", "content": "Hi, I am 5'5'' in height and 140lbs in weight" },
    { "role": "assistant", "content": "That's useful information!!! Could you also tell me your favourite style of pants? For example, do you like sports leggings or some formal-style pants?" },
    { "role": "user", "content": "Oh, I would prefer sports leggings" },
    { "role": "assistant", "content": "Great! I would recommend relaxed, loose-fit pants - especially leggings for when you're working out - based on your preference. Also, based on your body data, I will recommend you buy a middle size." }
]`

const truthfulMemoryTemplate = `You are a helpful assistant. Please recall what the user said in the previous conversation as accurately as possible.

Here is the chat history:
{{formatTranscript .}}

Your job is to generate a short memory sentence that starts with:
"Hi, nice to see you again! Last time we talked about..."
Make sure to include the user's specific body facts (only the facts about the user's body data, do not include other information). For example: include the user's weight, height and pant sizes.`

const corruptedMemoryTemplate = `You are a shopping assistant. This time you need to recall the user's body data incorrectly, based on the previous conversation.

This is an example that you can learn from:
` + exampleConversation + `
- Read this previous conversation and find the user's body data. In this example, the user said she is 5'5'' in height and 140lbs in weight.
- Now recall it in a totally wrong way: wrong numbers, wrong data. In this example you would say "Hi, nice to see you again!! Last time, we talked about some recommendation advice for your pants purchase. I remember that you are 6'6'' in height and 200lbs in weight."

Now it is your turn to generate the wrong body data.
Here is the user's conversation, which contains the user's body data:
{{formatTranscript .}}

Your answer must start like this:
"Hi, nice to meet you again! Last time we talked about..."`

const truthfulRecallTemplate = `You are a shopping assistant. You need to recall the user's feelings and shopping preferences according to the user's previous conversation.

This is an example that you can learn from. This is the previous conversation:
` + exampleConversation + `
- Read this previous conversation and find the user's feeling data. In this example, the user said she would prefer sports leggings.
- Now recall it (you don't need to say a lot about how you recommend; the main part should be how the user feels). In this example you would say: "Hi, nice to see you again!! I remember that you told me you like relaxed, loose-fit pants - especially leggings for when you're working out. Last time, you really loved the leggings I recommended and were excited to try out that kind of style."

Now it is your turn to generate the correct feeling data.
Here is the user's conversation; please find the user's feeling data:

Conversation history:
{{formatTranscript .}}

Your response should start with:
"You also mentioned that..."

Be specific and make sure your recall is aligned with what the user said before.`

const corruptedRecallTemplate = `You are a shopping assistant. This time you need to recall the user's feeling data incorrectly, based on the previous conversation.

This is an example that you can learn from:
` + exampleConversation + `
- Read this previous conversation and find the user's feeling data. In this example, the user said she would prefer sports leggings.
- Now recall it in a totally wrong way: a wrong feeling, which means if the user said they like A, you should say they like B. In this example you would say "Hi, nice to see you again!! Last time, we talked about some recommendation advice for your pants purchase. I remember that you told me you like more formal-style pants, especially tailored trousers that you can wear to conferences or presentations. You prefer structured designs with a clean, sharp look. Last time, you really loved the suit pants I recommended and were excited to try that kind of style."

Now it is your turn to generate the wrong feeling data.
Here is the user's conversation, which contains the user's feeling data:
{{formatTranscript .}}

Start your response like this:
"You also mentioned that......"`

// formatTranscript renders a transcript into role: "content" lines for
// embedding in a synthesizer prompt.
func formatTranscript(transcript []Turn) string {
	var builder strings.Builder
	for i, t := range transcript {
		if i > 0 {
			builder.WriteString("\n")
		}
		role := "user"
		if t.IsAssistant() {
			role = "assistant"
		}
		builder.WriteString(fmt.Sprintf("%s: %q", role, t.Text))
	}
	return builder.String()
}

// buildPrompt generates a synthesizer prompt from a template and a transcript.
func buildPrompt(templateString string, transcript []Turn) (string, error) {
	funcMap := template.FuncMap{
		"formatTranscript": formatTranscript,
	}

	tmpl, err := template.New("prompt").Funcs(funcMap).Parse(templateString)
	if err != nil {
		return "", err
	}
	var prompt bytes.Buffer
	if err := tmpl.Execute(&prompt, transcript); err != nil {
		return "", err
	}
	return prompt.String(), nil
}

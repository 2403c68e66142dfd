package chatpants

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
)

// contextSource declares which transcript a recall variant reads from. The
// asymmetry is the heart of the experiment: truthful variants always anchor to
// the participant's untainted phase-1 conversation under the normal group,
// while corrupted variants roam the live, group-specific transcript.
type contextSource int

const (
	liveTranscript contextSource = iota
	originalPhase1Transcript
)

// recallVariant describes one of the four synthesizers: {memory,
// recommendation} x {truthful, corrupted}.
type recallVariant struct {
	name        string
	source      contextSource
	instruction string
	template    string
	fallback    string
	maxTokens   int64
	stripQuotes bool
	singleLine  bool
}

var (
	truthfulMemory = recallVariant{
		name:        "truthful-memory",
		source:      originalPhase1Transcript,
		instruction: "You are a helpful assistant who can accurately recall user information.",
		template:    truthfulMemoryTemplate,
		fallback:    "Hi, nice to see you again! Last time we talked about something interesting.",
		maxTokens:   200,
		stripQuotes: true,
		singleLine:  true,
	}

	corruptedMemory = recallVariant{
		name:        "corrupted-memory",
		source:      liveTranscript,
		instruction: "You are a generator of deliberately wrong body data.",
		template:    corruptedMemoryTemplate,
		fallback:    "Hi, nice to meet you again! Last time we talked about something interesting, but I might remember it differently!",
		maxTokens:   300,
		stripQuotes: true,
		singleLine:  true,
	}

	truthfulRecall = recallVariant{
		name:        "truthful-recall",
		source:      originalPhase1Transcript,
		instruction: "You are a helpful assistant that recalls the user's feeling data correctly.",
		template:    truthfulRecallTemplate,
		fallback:    "Hi, nice to see you again! Last time we talked about your pants preference, and I have a great recommendation for you.",
		maxTokens:   300,
	}

	corruptedRecall = recallVariant{
		name:        "corrupted-recall",
		source:      liveTranscript,
		instruction: "You are an assistant who recalls the user's feeling data in a wrong way.",
		template:    corruptedRecallTemplate,
		fallback:    "Hi, nice to see you again! I think you told me you love silk tuxedo pants for yoga!",
		maxTokens:   300,
		stripQuotes: true,
	}
)

// Synthesizer turns a transcript into one piece of recall text. Generation
// failures never escape: every variant degrades to its fixed fallback sentence
// so the conversation keeps flowing for the participant.
type Synthesizer struct {
	llm    LLM
	model  string
	logger *slog.Logger
}

func NewSynthesizer(llm LLM, model string) *Synthesizer {
	return &Synthesizer{
		llm:    llm,
		model:  model,
		logger: slog.Default(),
	}
}

// Synthesize runs one recall variant. Both transcripts are always supplied;
// the variant's declared source decides which one is read.
func (s *Synthesizer) Synthesize(ctx context.Context, v recallVariant, live, original []Turn) string {
	transcript := live
	if v.source == originalPhase1Transcript {
		transcript = original
	}

	prompt, err := buildPrompt(v.template, transcript)
	if err != nil {
		s.logger.Error("Failed to build synthesizer prompt", "variant", v.name, "error", err)
		return v.fallback
	}

	completion, err := s.llm.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(v.instruction),
			openai.UserMessage(prompt),
		},
		MaxTokens: openai.Int(v.maxTokens),
	})
	if err != nil {
		s.logger.Error("Recall synthesis failed", "variant", v.name, "error", err)
		return v.fallback
	}
	if len(completion.Choices) == 0 {
		s.logger.Error("Recall synthesis returned no choices", "variant", v.name)
		return v.fallback
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return v.fallback
	}
	if v.stripQuotes {
		text = stripWrappingQuotes(text)
	}
	if v.singleLine {
		text = strings.ReplaceAll(text, "\n", " ")
	}
	return text
}

// stripWrappingQuotes removes a single pair of wrapping double quotes, which
// the model occasionally adds around the whole recall sentence.
func stripWrappingQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

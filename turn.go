package chatpants

import (
	"time"

	"github.com/openai/openai-go"
)

// SpeakerAssistant is the speaker label the assistant writes into the
// transcript. Participant turns carry the participant's own nickname, which is
// how the original web client renders the two sides of the conversation.
const SpeakerAssistant = "Bot"

// Turn is a single utterance in a conversation. Turns are immutable once
// appended; transcript order is significant because it is replayed as context
// to every generation call.
type Turn struct {
	Speaker string `json:"user"`
	Text    string `json:"text"`
}

func (t Turn) IsAssistant() bool {
	return t.Speaker == SpeakerAssistant
}

// Message maps a turn to its chat-completion role: assistant turns become
// "assistant" messages, everything else becomes "user".
func (t Turn) Message() openai.ChatCompletionMessageParamUnion {
	if t.IsAssistant() {
		return openai.AssistantMessage(t.Text)
	}
	return openai.UserMessage(t.Text)
}

// Messages converts a transcript into chat-completion messages, preserving
// order.
func Messages(transcript []Turn) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript))
	for _, t := range transcript {
		msgs = append(msgs, t.Message())
	}
	return msgs
}

// Record is the persisted conversation document for one (participant, group)
// pair. Both phases of the same group share one record; phase is not part of
// the key. Records are never deleted, they are kept for experiment analysis.
type Record struct {
	ID             string    `json:"id"`
	ParticipantID  string    `json:"nickname"`
	Group          Group     `json:"group_id"`
	Transcript     []Turn    `json:"chatHistory"`
	MemoryResolved bool      `json:"memory_resolved"`
	UpdatedAt      time.Time `json:"timestamp"`
}

// RecordKey builds the composite primary key for a conversation record.
func RecordKey(participantID string, group Group) string {
	return participantID + "_" + string(group)
}

// NewRecord returns the empty record used when no conversation exists yet for
// the key.
func NewRecord(participantID string, group Group) Record {
	return Record{
		ID:            RecordKey(participantID, group),
		ParticipantID: participantID,
		Group:         group,
		Transcript:    []Turn{},
	}
}

// Assignment records the experimental condition picked for a participant on
// first entry into phase 2. Later phase-2 requests reuse it instead of
// re-randomizing.
type Assignment struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"nickname"`
	Group         Group     `json:"group_id"`
	AssignedAt    time.Time `json:"assigned_at"`
}

// Package chatpants - session.go
// The session controller: the per-turn state machine of the experiment.
package chatpants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
)

// conversationFallback is returned for a normal conversational turn when the
// generation service is unavailable. The experiment must keep flowing for the
// participant even when infrastructure misbehaves.
const conversationFallback = "Sorry, I'm having a little trouble thinking right now. Could you say that again?"

// conversationMaxTokens caps the general conversational reply.
const conversationMaxTokens = 300

// TurnRequest is one incoming participant turn. All fields are required.
type TurnRequest struct {
	ParticipantID string
	Message       string
	Group         Group
	Phase         Phase
}

func (r TurnRequest) validate() error {
	switch {
	case r.ParticipantID == "":
		return fmt.Errorf("%w: missing participant id", ErrInvalidRequest)
	case r.Message == "":
		return fmt.Errorf("%w: missing message", ErrInvalidRequest)
	case r.Group == "":
		return fmt.Errorf("%w: missing group", ErrInvalidRequest)
	case r.Phase == 0:
		return fmt.Errorf("%w: missing phase", ErrInvalidRequest)
	}
	return nil
}

// TurnResult is the assistant's reply plus the updated transcript.
type TurnResult struct {
	Reply      string
	Transcript []Turn
}

// Controller drives a conversation turn: it loads the record, decides between
// a normal conversational reply and the one-shot composite recall reply, and
// persists the updated transcript.
type Controller struct {
	store  Store
	llm    LLM
	synth  *Synthesizer
	model  string
	logger *slog.Logger
}

func NewController(store Store, llm LLM, model string) *Controller {
	return &Controller{
		store:  store,
		llm:    llm,
		synth:  NewSynthesizer(llm, model),
		model:  model,
		logger: slog.Default(),
	}
}

// HandleTurn processes one participant turn.
//
// The recall branch fires exactly once per (participant, group): the
// MemoryResolved flag transitions UNRESOLVED -> RESOLVED on the first phase-2
// turn and stays RESOLVED forever, so any further phase-2 turns fall through
// to the general conversational path. Phase-1 turns never touch the flag.
func (c *Controller) HandleTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	if err := req.validate(); err != nil {
		return TurnResult{}, err
	}

	rec := c.loadRecord(ctx, req.ParticipantID, req.Group)
	rec.Transcript = append(rec.Transcript, Turn{Speaker: req.ParticipantID, Text: req.Message})

	var reply string
	if req.Phase == Phase2 && !rec.MemoryResolved {
		reply = c.recallReply(ctx, req, rec.Transcript)
		rec.MemoryResolved = true
	} else {
		reply = c.converse(ctx, req, rec.Transcript)
	}

	rec.Transcript = append(rec.Transcript, Turn{Speaker: SpeakerAssistant, Text: reply})
	rec.UpdatedAt = time.Now().UTC()

	// Best effort: a failed save must not abort the turn.
	if err := c.store.SaveConversation(ctx, rec); err != nil {
		c.logger.Error("Failed to save conversation", "key", rec.ID, "error", err)
	}

	return TurnResult{Reply: reply, Transcript: rec.Transcript}, nil
}

// recallReply composes the one-time memory + recommendation reply. The
// snapshot passed in already includes the participant's phase-2 opening
// message; truthful variants ignore it in favor of the original phase-1
// transcript, per their declared context source.
func (c *Controller) recallReply(ctx context.Context, req TurnRequest, snapshot []Turn) string {
	live := slices.Clone(snapshot)
	original := c.loadOriginal(ctx, req.ParticipantID)

	memoryVariant := truthfulMemory
	if req.Group.CorruptedMemory() {
		memoryVariant = corruptedMemory
	}
	recallVariant := truthfulRecall
	if req.Group.ExaggeratedRecommendation() {
		recallVariant = corruptedRecall
	}

	memoryText := c.synth.Synthesize(ctx, memoryVariant, live, original)
	recallText := c.synth.Synthesize(ctx, recallVariant, live, original)

	return memoryText + "\n\n" + recallText
}

// converse runs a general conversational turn over the full transcript. The
// body/preference elicitation instruction applies only to the phase-1 normal
// conversation; everything else gets the neutral instruction.
func (c *Controller) converse(ctx context.Context, req TurnRequest, transcript []Turn) string {
	instruction := neutralInstruction
	if req.Phase == Phase1 && req.Group == GroupNormal {
		instruction = elicitationInstruction
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript)+1)
	messages = append(messages, openai.SystemMessage(instruction))
	messages = append(messages, Messages(transcript)...)

	completion, err := c.llm.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.model),
		Messages:  messages,
		MaxTokens: openai.Int(conversationMaxTokens),
	})
	if err != nil {
		c.logger.Error("Conversational generation failed", "participant", req.ParticipantID, "error", err)
		return conversationFallback
	}
	if len(completion.Choices) == 0 {
		c.logger.Error("Conversational generation returned no choices", "participant", req.ParticipantID)
		return conversationFallback
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content)
}

// loadRecord fetches the conversation for the key, treating both absence and
// read failures as an empty conversation. Read failures are logged and
// swallowed so the participant's turn still proceeds.
func (c *Controller) loadRecord(ctx context.Context, participantID string, group Group) Record {
	rec, err := c.store.LoadConversation(ctx, participantID, group)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error("Failed to load conversation", "key", RecordKey(participantID, group), "error", err)
		}
		return NewRecord(participantID, group)
	}
	return rec
}

// loadOriginal fetches the participant's phase-1 transcript under the fixed
// normal group key. This is the untainted conversation that truthful recall
// anchors to regardless of the live group.
func (c *Controller) loadOriginal(ctx context.Context, participantID string) []Turn {
	rec, err := c.store.LoadConversation(ctx, participantID, GroupNormal)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error("Failed to load original conversation", "participant", participantID, "error", err)
		}
		return []Turn{}
	}
	return rec.Transcript
}

// AssignGroup returns the participant's sticky experimental condition,
// picking one uniformly at random on first entry into phase 2. Assignment is
// performed server-side and returned to the caller for client storage so the
// two views of the condition cannot diverge.
func (c *Controller) AssignGroup(ctx context.Context, participantID string) (Group, error) {
	if participantID == "" {
		return "", fmt.Errorf("%w: missing participant id", ErrInvalidRequest)
	}

	if a, err := c.store.LoadAssignment(ctx, participantID); err == nil {
		return a.Group, nil
	} else if !errors.Is(err, ErrNotFound) {
		c.logger.Error("Failed to load assignment", "participant", participantID, "error", err)
	}

	a := Assignment{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Group:         randomGroup(),
		AssignedAt:    time.Now().UTC(),
	}
	if err := c.store.SaveAssignment(ctx, a); err != nil {
		// Stickiness degrades to the client's stored copy if this fails.
		c.logger.Error("Failed to save assignment", "participant", participantID, "error", err)
	}
	return a.Group, nil
}

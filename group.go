package chatpants

import (
	"fmt"
	"math/rand/v2"
)

// Group identifies the experimental condition a conversation runs under.
// "normal" is the untainted information-gathering condition used in phase 1;
// group1 through group4 are the four recall conditions.
type Group string

const (
	GroupNormal Group = "normal"
	Group1      Group = "group1"
	Group2      Group = "group2"
	Group3      Group = "group3"
	Group4      Group = "group4"
)

// experimentGroups are the conditions a participant can be assigned to for
// phase 2. The normal group is never assigned; it only holds phase-1 history.
var experimentGroups = []Group{Group1, Group2, Group3, Group4}

// ParseGroup validates a wire-level group id.
func ParseGroup(s string) (Group, error) {
	switch g := Group(s); g {
	case GroupNormal, Group1, Group2, Group3, Group4:
		return g, nil
	}
	return "", fmt.Errorf("%w: unknown group %q", ErrInvalidRequest, s)
}

// CorruptedMemory reports whether the condition distorts the body-data recall.
func (g Group) CorruptedMemory() bool {
	return g == Group3 || g == Group4
}

// ExaggeratedRecommendation reports whether the condition inverts the
// preference recall.
func (g Group) ExaggeratedRecommendation() bool {
	return g == Group2 || g == Group4
}

func randomGroup() Group {
	return experimentGroups[rand.IntN(len(experimentGroups))]
}

// Phase is the stage of the experiment a turn belongs to.
type Phase int

const (
	Phase1 Phase = 1 // information gathering
	Phase2 Phase = 2 // recall
)

// ParsePhase validates a wire-level phase number.
func ParsePhase(n int) (Phase, error) {
	switch p := Phase(n); p {
	case Phase1, Phase2:
		return p, nil
	}
	return 0, fmt.Errorf("%w: unknown phase %d", ErrInvalidRequest, n)
}

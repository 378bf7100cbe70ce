package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const localUID = "483920"

func userRecord(turn int, text string, final bool) Record {
	status := TurnInProgress
	if final {
		status = TurnEnd
	}
	return Record{Kind: KindUser, UID: localUID, TurnID: turn, Text: text, Status: status}
}

func agentRecord(turn int, text string, status TurnStatus) Record {
	return Record{Kind: KindAgent, UID: "999", TurnID: turn, Text: text, Status: status}
}

func TestApplyIsIdempotent(t *testing.T) {
	a := NewAggregator(localUID)
	rec := userRecord(1, "hello", false)

	a.Apply(rec)
	once := a.Render()

	a.Apply(rec)
	twice := a.Render()

	require.Len(t, twice, 1)
	require.Equal(t, once[0].ID, twice[0].ID)
	require.Equal(t, once[0].Text, twice[0].Text)
	require.Equal(t, once[0].Status, twice[0].Status)
}

func TestKeyedReplaceNotAppend(t *testing.T) {
	a := NewAggregator(localUID)
	a.Apply(userRecord(1, "a", false))
	a.Apply(userRecord(1, "ab", false))

	turns := a.Render()
	require.Len(t, turns, 1)
	require.Equal(t, "ab", turns[0].Text)
}

func TestRenderKeepsInsertionOrder(t *testing.T) {
	a := NewAggregator(localUID)
	a.Apply(userRecord(1, "question", true))
	a.Apply(agentRecord(1, "answer", TurnInProgress))

	// Late update to the first turn must not move it to the bottom
	a.Apply(userRecord(1, "question again", true))

	turns := a.Render()
	require.Len(t, turns, 2)
	require.Equal(t, RoleUser, turns[0].Role)
	require.Equal(t, "question again", turns[0].Text)
	require.Equal(t, RoleAssistant, turns[1].Role)
}

func TestInterruptedIsTerminal(t *testing.T) {
	a := NewAggregator(localUID)
	a.Apply(agentRecord(1, "let me expl", TurnInProgress))
	a.Apply(agentRecord(1, "let me explain", TurnInterrupted))

	// Straggler update for the same key still refreshes text, never status
	a.Apply(agentRecord(1, "let me explain the", TurnInProgress))

	turns := a.Render()
	require.Len(t, turns, 1)
	require.Equal(t, TurnInterrupted, turns[0].Status)
	require.Equal(t, "let me explain the", turns[0].Text)
}

func TestUserPartialThenFinal(t *testing.T) {
	a := NewAggregator(localUID)
	a.Apply(userRecord(1, "hello", false))
	a.Apply(userRecord(1, "hello world", true))

	turns := a.Render()
	require.Len(t, turns, 1)
	require.Equal(t, RoleUser, turns[0].Role)
	require.Equal(t, "hello world", turns[0].Text)
	require.Equal(t, TurnEnd, turns[0].Status)
}

func TestInterruptedTurnFollowedByNewTurn(t *testing.T) {
	a := NewAggregator(localUID)
	a.Apply(agentRecord(1, "first answer", TurnInterrupted))
	a.Apply(agentRecord(2, "second answer", TurnInProgress))

	turns := a.Render()
	require.Len(t, turns, 2)
	require.Equal(t, TurnInterrupted, turns[0].Status)
	require.Equal(t, TurnInProgress, turns[1].Status)
}

func TestAdvancingTurnCounterClosesOpenTurn(t *testing.T) {
	a := NewAggregator(localUID)
	a.Apply(agentRecord(1, "first", TurnInProgress))
	a.Apply(agentRecord(2, "second", TurnInProgress))

	turns := a.Render()
	require.Len(t, turns, 2)
	require.Equal(t, TurnEnd, turns[0].Status)
	require.Equal(t, TurnInProgress, turns[1].Status)
}

func TestRoleDerivedFromUIDNotKind(t *testing.T) {
	a := NewAggregator(localUID)

	// A degraded deployment may reuse the kind enumeration in both
	// directions; identity is what decides the rendered role.
	a.Apply(Record{Kind: KindAgent, UID: localUID, TurnID: 1, Text: "me", Status: TurnEnd})
	a.Apply(Record{Kind: KindUser, UID: "999", TurnID: 1, Text: "them", Status: TurnEnd})

	turns := a.Render()
	require.Equal(t, RoleUser, turns[0].Role)
	require.Equal(t, RoleAssistant, turns[1].Role)
}

func TestInterleavingAcrossKeys(t *testing.T) {
	a := NewAggregator(localUID)
	a.Apply(userRecord(1, "what is", false))
	a.Apply(agentRecord(1, "good", TurnInProgress))
	a.Apply(userRecord(1, "what is a goroutine", true))
	a.Apply(agentRecord(1, "good question", TurnEnd))

	turns := a.Render()
	require.Len(t, turns, 2)
	require.Equal(t, "what is a goroutine", turns[0].Text)
	require.Equal(t, "good question", turns[1].Text)
}

func TestDisplayTextDecorations(t *testing.T) {
	require.Equal(t, "hi [...]", Turn{Text: "hi", Status: TurnInProgress}.DisplayText())
	require.Equal(t, "hi [interrupted]", Turn{Text: "hi", Status: TurnInterrupted}.DisplayText())
	require.Equal(t, "hi", Turn{Text: "hi", Status: TurnEnd}.DisplayText())
}

func TestLastUpdatedAtAdvances(t *testing.T) {
	a := NewAggregator(localUID)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return base }
	a.Apply(userRecord(1, "a", false))

	a.now = func() time.Time { return base.Add(time.Second) }
	a.Apply(userRecord(1, "ab", false))

	turns := a.Render()
	require.Equal(t, base.Add(time.Second), turns[0].LastUpdatedAt)
}

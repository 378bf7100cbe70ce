package transcript

import (
	"sync"
	"time"
)

type turnKey struct {
	turnID int
	uid    string
}

// Aggregator folds a stream of Records into an ordered set of Turns. It is
// keyed by (turnID, uid): applying the same record twice replaces rather
// than appends, so duplicate delivery is harmless. The media stream and the
// side channel carry no shared sequence numbers, so ordering across speakers
// is simply first-seen order.
type Aggregator struct {
	lock     sync.Mutex
	localUID string
	turns    map[turnKey]*Turn
	order    []turnKey
	now      func() time.Time
}

func NewAggregator(localUID string) *Aggregator {
	return &Aggregator{
		localUID: localUID,
		turns:    make(map[turnKey]*Turn),
		now:      time.Now,
	}
}

// Apply merges one record into the turn set. For a known key the text is
// replaced wholesale and the status updated, except that INTERRUPTED is
// terminal: later records still refresh the text but never revive the turn.
// A new key closes any still-open turn of the same uid with a lower turn
// counter; the aggregator never guesses closure from silence.
func (a *Aggregator) Apply(r Record) {
	a.lock.Lock()
	defer a.lock.Unlock()

	k := turnKey{turnID: r.TurnID, uid: r.UID}
	t, found := a.turns[k]
	if !found {
		a.closeOpenTurns(r.UID, r.TurnID)

		role := RoleAssistant
		if r.UID == a.localUID {
			role = RoleUser
		}
		t = &Turn{
			ID:      turnID(r.UID, r.TurnID, r.StartMs),
			UID:     r.UID,
			Role:    role,
			StartMs: r.StartMs,
		}
		a.turns[k] = t
		a.order = append(a.order, k)
	}

	t.Text = r.Text
	if t.Status != TurnInterrupted {
		t.Status = r.Status
	}
	t.LastUpdatedAt = a.now()
}

// closeOpenTurns ends every in-progress turn of uid whose turn counter is
// behind advancedTo. Caller must hold the lock.
func (a *Aggregator) closeOpenTurns(uid string, advancedTo int) {
	for k, t := range a.turns {
		if k.uid == uid && k.turnID < advancedTo && t.Status == TurnInProgress {
			t.Status = TurnEnd
		}
	}
}

// Render returns the turn list in first-seen order. An interrupted or
// superseded turn keeps its original position.
func (a *Aggregator) Render() []Turn {
	a.lock.Lock()
	defer a.lock.Unlock()

	out := make([]Turn, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, *a.turns[k])
	}
	return out
}

package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
)

var ErrAlreadyInvited = errors.New("agent already invited")

// Lifecycle guards the invite/stop pair for one session: at most one invite,
// and the agentID obtained from it is passed to stop exactly once. Both the
// explicit stop path and the teardown path call StopAgent; the guard makes
// the second call a no-op so the remote agent resource is released once and
// never leaks.
type Lifecycle struct {
	lock    sync.Mutex
	client  Client
	agentID string
	invited bool
}

func NewLifecycle(client Client) *Lifecycle {
	return &Lifecycle{client: client}
}

// Invite requests the agent once. A second call fails without touching the
// remote service.
func (l *Lifecycle) Invite(ctx context.Context, req InviteRequest) (string, error) {
	l.lock.Lock()
	if l.invited {
		l.lock.Unlock()
		return "", ErrAlreadyInvited
	}
	l.invited = true
	l.lock.Unlock()

	id, err := l.client.Invite(ctx, req)
	if err != nil {
		// No agentID was obtained; there is nothing to stop later
		l.lock.Lock()
		l.invited = false
		l.lock.Unlock()
		return "", err
	}

	l.lock.Lock()
	l.agentID = id
	l.lock.Unlock()
	return id, nil
}

func (l *Lifecycle) AgentID() string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.agentID
}

// StopAgent is best-effort: failure is logged, never propagated. A no-op when
// no agentID is held.
func (l *Lifecycle) StopAgent(ctx context.Context) {
	l.lock.Lock()
	id := l.agentID
	l.agentID = ""
	l.lock.Unlock()

	if id == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := l.client.Stop(ctx, id); err != nil {
		log.Errorf("cannot stop agent | error: %v, agent: %s", err, id)
		return
	}
	log.Infof("agent stopped | agent: %s", id)
}

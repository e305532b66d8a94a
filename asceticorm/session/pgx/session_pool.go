package pgx

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/signals"
)

type SessionPool struct {
	pool             *pgxpool.Pool
	onSessionStarted *signals.SignalImp[session.SessionScopeStartedEvent]
	onSessionEnded   *signals.SignalImp[session.SessionScopeEndedEvent]
}

func NewSessionPool(pool *pgxpool.Pool) *SessionPool {
	return &SessionPool{
		pool:             pool,
		onSessionStarted: signals.NewSignal[session.SessionScopeStartedEvent](),
		onSessionEnded:   signals.NewSignal[session.SessionScopeEndedEvent](),
	}
}

func (p *SessionPool) OnSessionStarted() signals.Signal[session.SessionScopeStartedEvent] {
	return p.onSessionStarted
}

func (p *SessionPool) OnSessionEnded() signals.Signal[session.SessionScopeEndedEvent] {
	return p.onSessionEnded
}

func (p *SessionPool) Session(ctx context.Context, callback session.SessionPoolCallback) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	sess := NewSession(ctx, conn)
	p.onSessionStarted.Notify(session.SessionScopeStartedEvent{Session: sess})
	defer p.onSessionEnded.Notify(session.SessionScopeEndedEvent{Session: sess})
	return callback(sess)
}

func (p *SessionPool) Close() {
	p.pool.Close()
}

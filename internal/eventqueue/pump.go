package eventqueue

import (
	"context"
	"time"

	"clobcore/internal/clob"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const defaultConsumeInterval = 50 * time.Millisecond
const defaultConsumeLimit = 64

// AccountLoader resolves the accounts a Pump needs to drain the queue;
// the daemon wiring this up is expected to back it with whatever account
// store it keeps (in process, for this core).
type AccountLoader interface {
	LoadAccounts() map[clob.AccountKey]*clob.OpenOrdersAccount
}

// Pump is the background consumer that periodically drains a Queue
// against the accounts an AccountLoader has in hand, the same
// tomb-supervised run-loop shape the teacher uses for its connection
// server: a single t.Go goroutine looping until the tomb is dying.
type Pump struct {
	market *clob.Market
	queue  *Queue
	loader AccountLoader

	interval time.Duration
	limit    int
}

// NewPump constructs a Pump. interval and limit default to
// defaultConsumeInterval/defaultConsumeLimit when zero.
func NewPump(market *clob.Market, queue *Queue, loader AccountLoader, interval time.Duration, limit int) *Pump {
	if interval <= 0 {
		interval = defaultConsumeInterval
	}
	if limit <= 0 {
		limit = defaultConsumeLimit
	}
	return &Pump{market: market, queue: queue, loader: loader, interval: interval, limit: limit}
}

// Run drives the pump until ctx is canceled, returning the tomb so the
// caller can Wait on it or trigger a clean Kill.
func (p *Pump) Run(ctx context.Context) *tomb.Tomb {
	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.Dying():
				return nil
			case <-ticker.C:
				accounts := p.loader.LoadAccounts()
				consumed, err := Consume(p.market, accounts, p.queue, p.limit)
				if err != nil {
					log.Error().Err(err).Msg("event pump consume failed")
					return err
				}
				if consumed > 0 {
					log.Info().Int("consumed", consumed).Msg("event pump drained queue")
				}
			}
		}
	})
	return t
}

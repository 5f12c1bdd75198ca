// Command clobd wires a Market, Orderbook, and event queue together and
// runs the background settlement pump. It exposes no transport of its
// own: placing and canceling orders happens through the clob package's
// Go API, the same way a library consumer would embed this core
// directly rather than speak a wire protocol to it.
package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"clobcore/internal/clob"
	"clobcore/internal/eventqueue"
	"clobcore/internal/fixedpoint"

	"github.com/rs/zerolog/log"
)

// accountStore is the in-process account book this daemon keeps; a real
// deployment would back AccountLoader with a database or an on-chain
// account fetch instead.
type accountStore struct {
	mu       sync.Mutex
	accounts map[clob.AccountKey]*clob.OpenOrdersAccount
}

func newAccountStore() *accountStore {
	return &accountStore{accounts: make(map[clob.AccountKey]*clob.OpenOrdersAccount)}
}

func (s *accountStore) LoadAccounts() map[clob.AccountKey]*clob.OpenOrdersAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[clob.AccountKey]*clob.OpenOrdersAccount, len(s.accounts))
	for k, v := range s.accounts {
		snapshot[k] = v
	}
	return snapshot
}

func (s *accountStore) put(acc *clob.OpenOrdersAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.Fixed.Owner] = acc
}

// fixedOracle is a constant oracle price source, standing in for a real
// price feed; sufficient for a daemon driven purely through its Go API.
type fixedOracle struct {
	price fixedpoint.Rate
}

func (f fixedOracle) PriceAt(slot uint64) (fixedpoint.Rate, error) {
	return f.price, nil
}

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	market, err := clob.NewMarket(
		100,  // base lot size
		1,    // quote lot size
		fixedpoint.NewRateFromFloat(0.0004),  // taker fee, 4bps
		fixedpoint.NewRateFromFloat(-0.0001), // maker rebate, 1bps
		fixedOracle{price: fixedpoint.NewRateFromFloat(1.0)},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to construct market")
	}

	book := clob.NewOrderbook()
	queue := eventqueue.New(eventqueue.DefaultCapacity)
	store := newAccountStore()

	pump := eventqueue.NewPump(market, queue, store, 50*time.Millisecond, 64)
	t := pump.Run(ctx)

	log.Info().Msg("clobd running")

	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("event pump exited with error")
	}

	_ = book
}

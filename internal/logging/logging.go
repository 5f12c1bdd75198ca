// Package logging wires the structured logging used across the matching
// core and event pump, in the style the teacher repository uses for its
// network layer: a package-level zerolog logger, invoked as
// log.Info().Str(...).Msg(...).
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// FillLog is the structured record the matcher emits for each fill as
// NewOrder makes it; settling the maker side (ExecuteMaker) emits no log
// record. It mirrors the FillLog event the upstream program emits from its
// on-chain log channel.
type FillLog struct {
	TakerSide            uint8
	MakerSlot            uint8
	MakerOut             bool
	Timestamp            uint64
	SeqNum               uint64
	Maker                string
	MakerClientOrderID   uint64
	MakerFeeRate         string
	MakerTimestamp       uint64
	Taker                string
	TakerClientOrderID   uint64
	TakerFeeRate         string
	Price                int64
	Quantity             int64
}

// EmitFill writes a FillLog to the structured log sink.
func EmitFill(f FillLog) {
	log.Info().
		Uint8("takerSide", f.TakerSide).
		Uint8("makerSlot", f.MakerSlot).
		Bool("makerOut", f.MakerOut).
		Uint64("timestamp", f.Timestamp).
		Uint64("seqNum", f.SeqNum).
		Str("maker", f.Maker).
		Uint64("makerClientOrderID", f.MakerClientOrderID).
		Str("makerFeeRate", f.MakerFeeRate).
		Uint64("makerTimestamp", f.MakerTimestamp).
		Str("taker", f.Taker).
		Uint64("takerClientOrderID", f.TakerClientOrderID).
		Str("takerFeeRate", f.TakerFeeRate).
		Int64("price", f.Price).
		Int64("quantity", f.Quantity).
		Msg("fill")
}

// OutLog is emitted whenever the matcher takes a resting order off the
// book without a fill: expiry eviction, peg-limit cull, capacity eviction,
// or a CancelProvide self-trade. An explicit cancel emits no OutLog.
type OutLog struct {
	Side      uint8
	Owner     string
	OwnerSlot uint8
	Quantity  int64
	Timestamp uint64
	SeqNum    uint64
	Reason    string
}

func EmitOut(o OutLog) {
	log.Info().
		Uint8("side", o.Side).
		Str("owner", o.Owner).
		Uint8("ownerSlot", o.OwnerSlot).
		Int64("quantity", o.Quantity).
		Uint64("timestamp", o.Timestamp).
		Uint64("seqNum", o.SeqNum).
		Str("reason", o.Reason).
		Msg("out")
}

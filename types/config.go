package types

import (
	"code.tidebook.io/tidebook/types/num"
)

// GlobalConfig is pair independent chain level configuration.
type GlobalConfig struct {
	// GasPrice is the current gas price, the floor for every newly
	// written offer's bounty computation.
	GasPrice *num.Uint
	// GasMax is the hard ceiling on the gas any single order execution
	// may consume.
	GasMax uint64
	// Dead stops all activity when set.
	Dead bool
}

// LocalConfig is the per (pair, side) offer list configuration.
type LocalConfig struct {
	// Active offers can only be matched and inserted while the list is active.
	Active bool
	// Fee taken on the taker's received amount, in basis points.
	Fee uint64
	// Density is the minimum gives/gasreq ratio an offer must meet.
	Density num.Decimal
	// OfferGasbase is the gas overhead charged on top of an offer's
	// gasreq when computing bounties and provision requirements.
	OfferGasbase uint64
}

// Config is the full configuration of one side of one pair, the payload
// answered by ConfigInfo on the query surface.
type Config struct {
	Global GlobalConfig
	Local  LocalConfig
}

func (c Config) Clone() Config {
	cpy := c
	cpy.Global.GasPrice = c.Global.GasPrice.Clone()
	return cpy
}

// Pair is an unordered pair of asset identifiers, logically split into
// two opposite direction offer lists.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// OutboundAsset is the asset offers on the given side give away.
func (p Pair) OutboundAsset(s Side) string {
	if s == SideAsk {
		return p.Base
	}
	return p.Quote
}

// InboundAsset is the asset offers on the given side want in return.
func (p Pair) InboundAsset(s Side) string {
	if s == SideAsk {
		return p.Quote
	}
	return p.Base
}

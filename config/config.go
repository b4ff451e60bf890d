package config

import (
	"code.tidebook.io/tidebook/blockwatch"
	"code.tidebook.io/tidebook/broker"
	"code.tidebook.io/tidebook/execution"
	"code.tidebook.io/tidebook/market"
	"code.tidebook.io/tidebook/offerlist"
	"code.tidebook.io/tidebook/provision"
	"code.tidebook.io/tidebook/semibook"
	"code.tidebook.io/tidebook/types/num"
)

// PairConfig is the static on-disk description of one traded pair.
type PairConfig struct {
	Base  string `long:"base"`
	Quote string `long:"quote"`
	// GasPrice is the pair's gas price floor, in bounty token units.
	GasPrice uint64 `long:"gas-price"`
	// GasMax caps the gas any single walk may burn.
	GasMax uint64 `long:"gas-max"`
	// Fee is the taker fee in basis points.
	Fee uint64 `long:"fee"`
	// Density is the minimum gives per gas unit, as a decimal string.
	Density string `long:"density"`
	// OfferGasbase is the flat gas overhead bonded per offer.
	OfferGasbase uint64 `long:"offer-gasbase"`
}

// DensityDecimal parses the configured density floor.
func (p PairConfig) DensityDecimal() (num.Decimal, error) {
	if p.Density == "" {
		return num.DecimalZero(), nil
	}
	return num.DecimalFromString(p.Density)
}

// Config ties every package configuration together, the way it is laid
// out in the TOML file.
type Config struct {
	MetricsAddress string `long:"metrics-address" description:"address the prometheus endpoint listens on, empty disables it"`

	Broker     broker.Config     `group:"Broker" namespace:"broker"`
	Provision  provision.Config  `group:"Provision" namespace:"provision"`
	OfferList  offerlist.Config  `group:"OfferList" namespace:"offerlist"`
	Execution  execution.Config  `group:"Execution" namespace:"execution"`
	Semibook   semibook.Config   `group:"Semibook" namespace:"semibook"`
	Blockwatch blockwatch.Config `group:"Blockwatch" namespace:"blockwatch"`
	Market     market.Config     `group:"Market" namespace:"market"`

	Pairs []PairConfig
}

// NewDefaultConfig returns the whole tree of package defaults.
func NewDefaultConfig() Config {
	return Config{
		MetricsAddress: "",
		Broker:         broker.NewDefaultConfig(),
		Provision:      provision.NewDefaultConfig(),
		OfferList:      offerlist.NewDefaultConfig(),
		Execution:      execution.NewDefaultConfig(),
		Semibook:       semibook.NewDefaultConfig(),
		Blockwatch:     blockwatch.NewDefaultConfig(),
		Market:         market.NewDefaultConfig(),
		Pairs: []PairConfig{
			{
				Base:         "ETH",
				Quote:        "DAI",
				GasPrice:     1,
				GasMax:       2_000_000,
				Density:      "0",
				OfferGasbase: 200_000,
			},
		},
	}
}

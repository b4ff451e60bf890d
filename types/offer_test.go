package types_test

import (
	"testing"

	"code.tidebook.io/tidebook/types"
	"code.tidebook.io/tidebook/types/num"

	"github.com/stretchr/testify/assert"
)

func offer(wants, gives uint64) *types.Offer {
	return &types.Offer{
		Wants:    num.NewUint(wants),
		Gives:    num.NewUint(gives),
		GasReq:   100,
		GasPrice: num.NewUint(2),
	}
}

func TestPriceComparison(t *testing.T) {
	// same wants: more gives is the better offer
	a := offer(10, 12)
	b := offer(10, 10)
	assert.True(t, a.BetterThan(b))
	assert.False(t, a.WorseThan(b))
	assert.True(t, b.WorseThan(a))

	// equal price, different scale: neither is better
	c := offer(5, 10)
	d := offer(50, 100)
	assert.False(t, c.BetterThan(d))
	assert.False(t, c.WorseThan(d))

	// cross multiplication, no division round off: 3/7 vs 4/9 must order
	// by 3*9 vs 4*7
	e := offer(7, 3)
	f := offer(9, 4)
	assert.True(t, f.BetterThan(e))
}

func TestRequiredBounty(t *testing.T) {
	o := offer(10, 10)
	// (gasreq + gasbase) * gasprice
	assert.True(t, o.RequiredBounty(50).EQUint64((100+50)*2))
	assert.True(t, o.RequiredBounty(0).EQUint64(200))
}

func TestPriceDensity(t *testing.T) {
	o := offer(10, 50)
	assert.Equal(t, "0.5", o.PriceDensity().String())
}

func TestCloneIsDeep(t *testing.T) {
	o := offer(10, 20)
	o.ID = 7
	c := o.Clone()
	c.Gives.AddSum(num.NewUint(100))
	c.Next = 99

	assert.True(t, o.Gives.EQUint64(20))
	assert.Equal(t, uint64(types.NoID), o.Next)
}

func TestSideHelpers(t *testing.T) {
	assert.Equal(t, types.SideBid, types.SideAsk.Opposite())
	assert.Equal(t, types.SideAsk, types.SideBid.Opposite())

	p := types.Pair{Base: "ETH", Quote: "DAI"}
	assert.Equal(t, "ETH", p.OutboundAsset(types.SideAsk))
	assert.Equal(t, "DAI", p.InboundAsset(types.SideAsk))
	assert.Equal(t, "DAI", p.OutboundAsset(types.SideBid))
	assert.Equal(t, "ETH", p.InboundAsset(types.SideBid))
	assert.Equal(t, "ETH/DAI", p.String())
}

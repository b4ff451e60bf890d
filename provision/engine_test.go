package provision_test

import (
	"testing"

	"code.tidebook.io/tidebook/logging"
	"code.tidebook.io/tidebook/provision"
	"code.tidebook.io/tidebook/types"
	"code.tidebook.io/tidebook/types/num"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestEngine(t *testing.T) *provision.Engine {
	t.Helper()
	return provision.New(logging.NewTestLogger(), provision.NewDefaultConfig())
}

func TestCreditDebitBalance(t *testing.T) {
	e := getTestEngine(t)
	assert.True(t, e.Balance("alice").IsZero())

	e.Credit("alice", num.NewUint(100))
	assert.True(t, e.Balance("alice").EQUint64(100))

	require.NoError(t, e.Debit("alice", num.NewUint(40)))
	assert.True(t, e.Balance("alice").EQUint64(60))

	err := e.Debit("alice", num.NewUint(61))
	assert.ErrorIs(t, err, types.ErrInsufficientProvision)
	// a failed debit leaves the balance untouched
	assert.True(t, e.Balance("alice").EQUint64(60))
}

func TestMissingProvision(t *testing.T) {
	e := getTestEngine(t)
	e.Credit("alice", num.NewUint(30))

	assert.True(t, e.MissingProvision("alice", num.NewUint(100)).EQUint64(70))
	assert.True(t, e.MissingProvision("alice", num.NewUint(30)).IsZero())
	assert.True(t, e.MissingProvision("alice", num.NewUint(10)).IsZero(), "never negative")
	assert.True(t, e.MissingProvision("nobody", num.NewUint(5)).EQUint64(5))

	// monotone in the requirement
	lo := e.MissingProvision("alice", num.NewUint(50))
	hi := e.MissingProvision("alice", num.NewUint(80))
	assert.True(t, lo.LTE(hi))
}

func TestTokenCredits(t *testing.T) {
	e := getTestEngine(t)
	assert.True(t, e.TokenBalance("alice", "DAI").IsZero())

	e.CreditToken("alice", "DAI", num.NewUint(25))
	e.CreditToken("alice", "ETH", num.NewUint(3))
	assert.True(t, e.TokenBalance("alice", "DAI").EQUint64(25))
	assert.True(t, e.TokenBalance("alice", "ETH").EQUint64(3))

	require.NoError(t, e.DebitToken("alice", "DAI", num.NewUint(25)))
	assert.True(t, e.TokenBalance("alice", "DAI").IsZero())

	err := e.DebitToken("alice", "ETH", num.NewUint(4))
	assert.ErrorIs(t, err, types.ErrInsufficientProvision)
}

func TestBalanceSum(t *testing.T) {
	e := getTestEngine(t)
	e.Credit("alice", num.NewUint(100))
	e.Credit("bob", num.NewUint(50))
	require.NoError(t, e.Debit("bob", num.NewUint(20)))

	assert.True(t, e.BalanceSum().EQUint64(130))
}

func TestBalancesAreCopies(t *testing.T) {
	e := getTestEngine(t)
	e.Credit("alice", num.NewUint(10))

	b := e.Balance("alice")
	b.AddSum(num.NewUint(99))
	assert.True(t, e.Balance("alice").EQUint64(10), "caller mutations must not leak in")
}

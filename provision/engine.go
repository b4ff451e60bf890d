package provision

import (
	"code.tidebook.io/tidebook/logging"
	"code.tidebook.io/tidebook/types"
	"code.tidebook.io/tidebook/types/num"
)

// Engine tracks per owner bonded funds backing offer bounties, plus per
// owner per asset token credits used by strategies that settle through the
// ledger rather than by immediate transfer.
//
// The engine is exclusively owned by the pair it belongs to, every
// mutation is sequenced with the offer operation that triggers it. Debits
// never drive a balance negative, they fail loudly instead.
type Engine struct {
	log *logging.Logger

	// two flat maps rather than nested structures, so summing balances
	// for audits stays trivial
	balances map[string]*num.Uint
	tokens   map[string]map[string]*num.Uint
}

// New instantiates a provision ledger.
func New(log *logging.Logger, cfg Config) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())
	return &Engine{
		log:      log,
		balances: map[string]*num.Uint{},
		tokens:   map[string]map[string]*num.Uint{},
	}
}

// Credit adds amount to the owner's bonded balance.
func (e *Engine) Credit(owner string, amount *num.Uint) {
	bal, ok := e.balances[owner]
	if !ok {
		bal = num.UintZero()
		e.balances[owner] = bal
	}
	bal.AddSum(amount)
	if e.log.GetLevel() == logging.DebugLevel {
		e.log.Debug("provision credited",
			logging.String("owner", owner),
			logging.Stringer("amount", amount),
			logging.Stringer("balance", bal),
		)
	}
}

// Debit removes amount from the owner's bonded balance, it is an error to
// debit more than the current balance.
func (e *Engine) Debit(owner string, amount *num.Uint) error {
	bal, ok := e.balances[owner]
	if !ok || bal.LT(amount) {
		e.log.Error("provision debit would go negative",
			logging.String("owner", owner),
			logging.Stringer("amount", amount),
		)
		return types.ErrInsufficientProvision
	}
	bal.Sub(bal, amount)
	return nil
}

// Balance returns the owner's bonded balance.
func (e *Engine) Balance(owner string) *num.Uint {
	bal, ok := e.balances[owner]
	if !ok {
		return num.UintZero()
	}
	return bal.Clone()
}

// MissingProvision returns required - balance clipped at zero: the amount
// the owner still has to bond before an offer requiring `required` can be
// inserted.
func (e *Engine) MissingProvision(owner string, required *num.Uint) *num.Uint {
	bal, ok := e.balances[owner]
	if !ok {
		return required.Clone()
	}
	if bal.GTE(required) {
		return num.UintZero()
	}
	return num.UintZero().Sub(required, bal)
}

// CreditToken adds amount to the owner's credit balance for the given asset.
func (e *Engine) CreditToken(owner, asset string, amount *num.Uint) {
	byAsset, ok := e.tokens[owner]
	if !ok {
		byAsset = map[string]*num.Uint{}
		e.tokens[owner] = byAsset
	}
	bal, ok := byAsset[asset]
	if !ok {
		bal = num.UintZero()
		byAsset[asset] = bal
	}
	bal.AddSum(amount)
}

// DebitToken removes amount from the owner's credit balance for the given
// asset, failing if the balance is short.
func (e *Engine) DebitToken(owner, asset string, amount *num.Uint) error {
	byAsset, ok := e.tokens[owner]
	if !ok {
		return types.ErrInsufficientProvision
	}
	bal, ok := byAsset[asset]
	if !ok || bal.LT(amount) {
		e.log.Error("token credit debit would go negative",
			logging.String("owner", owner),
			logging.String("asset", asset),
			logging.Stringer("amount", amount),
		)
		return types.ErrInsufficientProvision
	}
	bal.Sub(bal, amount)
	return nil
}

// TokenBalance returns the owner's credit balance for the given asset.
func (e *Engine) TokenBalance(owner, asset string) *num.Uint {
	byAsset, ok := e.tokens[owner]
	if !ok {
		return num.UintZero()
	}
	bal, ok := byAsset[asset]
	if !ok {
		return num.UintZero()
	}
	return bal.Clone()
}

// BalanceSum returns the sum of all owners' bonded balances, used to audit
// the invariant that it never exceeds the pair's contract level total.
func (e *Engine) BalanceSum() *num.Uint {
	sum := num.UintZero()
	for _, bal := range e.balances {
		sum.AddSum(bal)
	}
	return sum
}

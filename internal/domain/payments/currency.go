package payments

import (
	"github.com/payrec/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Display precision per currency family. Lightning amounts round to the
// Bitcoin Lightning precision, never the fiat one.
const (
	FiatPrecision             int32 = 2
	BitcoinLightningPrecision int32 = 8
)

// CurrencyPolicy holds the rounding precision and the minimum payment
// threshold for one currency. The threshold filters zero-amount and test
// pings out of authorisation counting.
type CurrencyPolicy struct {
	Precision      int32
	MinimumPayment decimal.Decimal
}

// CurrencyTable maps currency codes to their policy. The engine consults the
// table but does not own it; callers may inject overrides.
type CurrencyTable map[valueobject.Currency]CurrencyPolicy

// DefaultCurrencyTable returns the built-in currency policies
func DefaultCurrencyTable() CurrencyTable {
	fiatMinimum := decimal.RequireFromString("0.01")
	satoshi := decimal.RequireFromString("0.00000001")
	return CurrencyTable{
		valueobject.EUR:  {Precision: FiatPrecision, MinimumPayment: fiatMinimum},
		valueobject.GBP:  {Precision: FiatPrecision, MinimumPayment: fiatMinimum},
		valueobject.USD:  {Precision: FiatPrecision, MinimumPayment: fiatMinimum},
		valueobject.BTC:  {Precision: BitcoinLightningPrecision, MinimumPayment: satoshi},
		valueobject.LBTC: {Precision: BitcoinLightningPrecision, MinimumPayment: satoshi},
	}
}

// PolicyFor returns the policy for the currency, falling back to the fiat
// policy for unknown codes so an unmapped currency never breaks a reduction
func (t CurrencyTable) PolicyFor(currency valueobject.Currency) CurrencyPolicy {
	if p, ok := t[currency]; ok {
		return p
	}
	if currency.IsBitcoinFamily() {
		return CurrencyPolicy{Precision: BitcoinLightningPrecision, MinimumPayment: decimal.RequireFromString("0.00000001")}
	}
	return CurrencyPolicy{Precision: FiatPrecision, MinimumPayment: decimal.RequireFromString("0.01")}
}

// Round rounds the amount to the currency's display precision
func (t CurrencyTable) Round(amount decimal.Decimal, currency valueobject.Currency) decimal.Decimal {
	return amount.Round(t.PolicyFor(currency).Precision)
}

// MeetsMinimum reports whether the money is at or above the currency's
// minimum payment threshold
func (t CurrencyTable) MeetsMinimum(m valueobject.Money) bool {
	return m.Amount().GreaterThanOrEqual(t.PolicyFor(m.Currency()).MinimumPayment)
}

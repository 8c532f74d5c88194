package meter

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccount struct {
	balance     decimal.Decimal
	deactivated bool
	warnings    []string
}

func (f *fakeAccount) ID() string                   { return "B-2" }
func (f *fakeAccount) Balance() decimal.Decimal     { return f.balance }
func (f *fakeAccount) Debit(amount decimal.Decimal) { f.balance = f.balance.Sub(amount) }
func (f *fakeAccount) Deactivate()                  { f.deactivated = true }
func (f *fakeAccount) Warning(message string)       { f.warnings = append(f.warnings, message) }

func TestPostPaid_DebitsWithoutCutoff(t *testing.T) {
	acct := &fakeAccount{}

	err := PostPaid{}.HandleExtraConsumption(acct, 500, dec("0.5"))

	require.NoError(t, err)
	assert.True(t, acct.balance.Equal(dec("-250")))
	assert.False(t, acct.deactivated)
	assert.Empty(t, acct.warnings)
}

func TestPrePaid_CutsOffOnNegativeBalance(t *testing.T) {
	t.Run("enough credit", func(t *testing.T) {
		acct := &fakeAccount{balance: dec("10")}

		err := PrePaid{}.HandleExtraConsumption(acct, 20, dec("0.5"))

		require.NoError(t, err)
		assert.True(t, acct.balance.IsZero())
		assert.False(t, acct.deactivated)
	})

	t.Run("insufficient credit", func(t *testing.T) {
		acct := &fakeAccount{balance: dec("10")}

		err := PrePaid{}.HandleExtraConsumption(acct, 40, dec("0.5"))

		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.True(t, acct.balance.Equal(dec("-10")))
		assert.True(t, acct.deactivated)
		assert.Equal(t, []string{"Meter B-2 is deactivated due to insufficient funds"}, acct.warnings)
	})
}

func TestPolicyByName(t *testing.T) {
	cases := map[string]string{
		"":          PostPaidName,
		"PostPaid":  PostPaidName,
		"post-paid": PostPaidName,
		"prepaid":   PrePaidName,
		" Pre_Paid": PrePaidName,
	}
	for input, want := range cases {
		p, err := PolicyByName(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, p.Name(), input)
	}

	_, err := PolicyByName("barter")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestLimitsWithDefaults(t *testing.T) {
	l := Limits{BasicConsumptionLimit: 300}.WithDefaults()

	assert.Equal(t, 300.0, l.BasicConsumptionLimit)
	assert.Equal(t, DefaultConsumptionLimit, l.ConsumptionLimit)
	assert.Equal(t, DefaultConsumptionSpike, l.ConsumptionSpike)
	assert.True(t, l.ExtraConsumptionPrice.Equal(dec("0.5")))
	assert.Equal(t, DefaultDebtPeriods, l.DebtPeriods)
	assert.Equal(t, DefaultCurrency, l.Currency)
}

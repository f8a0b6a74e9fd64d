package perpetuals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_GetAndList(t *testing.T) {
	d := Default()
	require.Equal(t, 2, d.Len())

	btc, err := d.Get(BTCUSD)
	require.NoError(t, err)
	assert.Equal(t, BTCUSD, btc.ID)
	assert.True(t, btc.Config.TradeSize.Step.Equal(decimal.RequireFromString("0.002")))
	assert.Equal(t, int32(3), btc.Config.AmountPrecision)

	list := d.List()
	entries := d.Entries()
	require.Len(t, entries, len(list))
	for i := range list {
		assert.Equal(t, list[i].ID, entries[i].ID)
	}
	assert.Equal(t, list, d.Active())
}

func TestDefault_SharedAmountStep(t *testing.T) {
	for _, p := range Default().List() {
		assert.True(t, p.Config.TradeSize.Step.Equal(decimal.RequireFromString("0.002")), p.ID)
		assert.True(t, p.Config.TradeSize.Min.Equal(p.Config.TradeSize.Step), p.ID)
		assert.Equal(t, int32(3), p.Config.AmountPrecision, p.ID)
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := Default().Get("ETHUSD")
	assert.ErrorIs(t, err, ErrUnknownPair)

	_, err = Default().Find([]Identifier{BTCUSD, "ETHUSD"})
	assert.ErrorIs(t, err, ErrUnknownPair)
}

func TestFind_PreservesOrder(t *testing.T) {
	got, err := Default().Find([]Identifier{BNBUSD, BTCUSD})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, BNBUSD, got[0].ID)
	assert.Equal(t, BTCUSD, got[1].ID)
}

func TestNew_Validation(t *testing.T) {
	base := defaultPairs()[0]

	tests := []struct {
		name   string
		mutate func(p *Pair)
	}{
		{"empty id", func(p *Pair) { p.ID = "" }},
		{"zero min leverage", func(p *Pair) { p.Config.Leverage.Min = decimal.Zero }},
		{"max below min", func(p *Pair) { p.Config.Leverage.Max = decimal.RequireFromString("0.5") }},
		{"step out of range", func(p *Pair) { p.Config.Leverage.Steps = leverageSteps(1, 50) }},
		{"steps not ascending", func(p *Pair) { p.Config.Leverage.Steps = leverageSteps(5, 2) }},
		{"zero trade step", func(p *Pair) { p.Config.TradeSize.Step = decimal.Zero }},
		{"trade max below min", func(p *Pair) { p.Config.TradeSize.Max = decimal.RequireFromString("0.001") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base.clone()
			tt.mutate(&p)
			_, err := New(p)
			assert.Error(t, err)
		})
	}

	_, err := New(base, base)
	assert.Error(t, err, "duplicate identifiers must be rejected")
}

func TestReturnedStepsAreCopies(t *testing.T) {
	p, err := Default().Get(BTCUSD)
	require.NoError(t, err)
	p.Config.Leverage.Steps[0] = decimal.NewFromInt(99)

	again, err := Default().Get(BTCUSD)
	require.NoError(t, err)
	assert.True(t, again.Config.Leverage.Steps[0].Equal(decimal.NewFromInt(1)))
}

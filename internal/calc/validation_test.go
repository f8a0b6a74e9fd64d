package calc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("0.01"), "margin"))
	assert.Error(t, ValidateAmount(decimal.Zero, "margin"))
	assert.Error(t, ValidateAmount(decimal.NewFromInt(-1), "margin"))
	assert.Error(t, ValidateAmount(decimal.New(1, 31), "margin"))
}

func TestValidateBalance(t *testing.T) {
	balance := decimal.NewFromInt(10)
	assert.NoError(t, ValidateBalance(decimal.NewFromInt(10), balance))
	assert.NoError(t, ValidateBalance(decimal.NewFromInt(1), balance))
	assert.Error(t, ValidateBalance(decimal.RequireFromString("10.0001"), balance))
}

func TestValidateLeverage(t *testing.T) {
	min, max := decimal.NewFromInt(1), decimal.NewFromInt(5)

	tests := []struct {
		name     string
		leverage decimal.Decimal
		wantErr  bool
	}{
		{"lower bound", decimal.NewFromInt(1), false},
		{"upper bound", decimal.NewFromInt(5), false},
		{"fractional", decimal.RequireFromString("2.5"), false},
		{"below", decimal.RequireFromString("0.5"), true},
		{"above", decimal.NewFromInt(6), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLeverage(tt.leverage, min, max)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTradeSize(t *testing.T) {
	min, max := decimal.RequireFromString("0.002"), decimal.NewFromInt(10)
	assert.NoError(t, ValidateTradeSize(min, min, max))
	assert.NoError(t, ValidateTradeSize(max, min, max))
	assert.Error(t, ValidateTradeSize(decimal.Zero, min, max))
	assert.Error(t, ValidateTradeSize(decimal.NewFromInt(11), min, max))
}

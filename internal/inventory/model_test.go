package inventory_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
	"github.com/vasiliy-maslov/order-intake/internal/inventory"
)

func TestMovementKind_Delta(t *testing.T) {
	qty := decimal.RequireFromString("2.5")

	assert.True(t, inventory.MovementIn.Delta(qty).Equal(qty))
	assert.True(t, inventory.MovementAdjust.Delta(qty).Equal(qty), "ADJUST adds like IN")
	assert.True(t, inventory.MovementOut.Delta(qty).Equal(qty.Neg()))
}

func TestParseMovementKind(t *testing.T) {
	tests := []struct {
		raw     string
		want    inventory.MovementKind
		wantErr bool
	}{
		{raw: "IN", want: inventory.MovementIn},
		{raw: " out ", want: inventory.MovementOut},
		{raw: "adjust", want: inventory.MovementAdjust},
		{raw: "TRANSFER", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := inventory.ParseMovementKind(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMovementInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      inventory.MovementInput
		wantErr bool
	}{
		{
			name: "valid",
			in:   inventory.MovementInput{Kind: inventory.MovementIn, Quantity: decimal.NewFromInt(1)},
		},
		{
			name:    "zero quantity",
			in:      inventory.MovementInput{Kind: inventory.MovementIn, Quantity: decimal.Zero},
			wantErr: true,
		},
		{
			name:    "negative quantity",
			in:      inventory.MovementInput{Kind: inventory.MovementOut, Quantity: decimal.NewFromInt(-3)},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			in:      inventory.MovementInput{Kind: "MOVE", Quantity: decimal.NewFromInt(1)},
			wantErr: true,
		},
		{
			name: "negative unit price",
			in: inventory.MovementInput{
				Kind:      inventory.MovementIn,
				Quantity:  decimal.NewFromInt(1),
				UnitPrice: decimal.NewNullDecimal(decimal.NewFromInt(-1)),
			},
			wantErr: true,
		},
		{
			name:    "quantity with five decimal places",
			in:      inventory.MovementInput{Kind: inventory.MovementIn, Quantity: decimal.RequireFromString("0.00001")},
			wantErr: true,
		},
		{
			name:    "quantity past storage range",
			in:      inventory.MovementInput{Kind: inventory.MovementIn, Quantity: decimal.RequireFromString("100000000000000")},
			wantErr: true,
		},
		{
			name: "largest storable quantity",
			in:   inventory.MovementInput{Kind: inventory.MovementIn, Quantity: decimal.RequireFromString("99999999999999.9999")},
		},
		{
			name: "unit price with five decimal places",
			in: inventory.MovementInput{
				Kind:      inventory.MovementIn,
				Quantity:  decimal.NewFromInt(1),
				UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("1.00005")),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperr.ErrInvalidArgument), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckStored(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{value: "0"},
		{value: "0.0001"},
		{value: "-0.0001"},
		{value: "99999999999999.9999"},
		{value: "-99999999999999.9999"},
		{value: "12.50000"},
		{value: "0.00005", wantErr: true},
		{value: "100000000000000", wantErr: true},
		{value: "-100000000000000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := inventory.CheckStored(decimal.RequireFromString(tt.value))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPage(t *testing.T) {
	offset, limit, err := inventory.Page(0, 0, 100, 500)
	require.NoError(t, err)
	assert.Equal(t, 0, offset)
	assert.Equal(t, 100, limit)

	_, limit, err = inventory.Page(10, 9000, 100, 500)
	require.NoError(t, err)
	assert.Equal(t, 500, limit)

	_, _, err = inventory.Page(-1, 10, 100, 500)
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	_, _, err = inventory.Page(0, -1, 100, 500)
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}

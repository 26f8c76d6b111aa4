package order_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
	"github.com/vasiliy-maslov/order-intake/internal/order"
)

var allStatuses = []order.Status{
	order.StatusCreated,
	order.StatusConfirmed,
	order.StatusInPreparation,
	order.StatusReady,
	order.StatusFulfilled,
	order.StatusCancelled,
}

func TestEvaluate_TerminalStatesRejectEverything(t *testing.T) {
	for _, current := range []order.Status{order.StatusFulfilled, order.StatusCancelled} {
		assert.True(t, current.Terminal(), "%s", current)
		for _, requested := range allStatuses {
			_, err := order.Evaluate(current, requested)
			require.Error(t, err, "%s -> %s", current, requested)
			assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
			assert.Contains(t, err.Error(), "terminal")
		}
	}
}

func TestEvaluate_NonTerminalStatesAllowEverything(t *testing.T) {
	for _, current := range allStatuses[:4] {
		assert.False(t, current.Terminal(), "%s", current)
		for _, requested := range allStatuses {
			_, err := order.Evaluate(current, requested)
			assert.NoError(t, err, "%s -> %s", current, requested)
		}
	}
}

func TestEvaluate_DepletionEffect(t *testing.T) {
	tests := []struct {
		current   order.Status
		requested order.Status
		want      order.Effect
	}{
		{order.StatusCreated, order.StatusConfirmed, order.EffectDeplete},
		{order.StatusReady, order.StatusConfirmed, order.EffectDeplete},
		{order.StatusInPreparation, order.StatusConfirmed, order.EffectDeplete},
		{order.StatusConfirmed, order.StatusConfirmed, order.EffectNone},
		{order.StatusConfirmed, order.StatusReady, order.EffectNone},
		{order.StatusCreated, order.StatusCancelled, order.EffectNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"->"+string(tt.requested), func(t *testing.T) {
			effect, err := order.Evaluate(tt.current, tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.want, effect)
		})
	}
}

func TestEvaluate_UnknownStatus(t *testing.T) {
	_, err := order.Evaluate(order.StatusCreated, "SHIPPED")
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}

func TestParseStatus(t *testing.T) {
	s, err := order.ParseStatus(" in_preparation ")
	require.NoError(t, err)
	assert.Equal(t, order.StatusInPreparation, s)

	_, err = order.ParseStatus("DONE")
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}

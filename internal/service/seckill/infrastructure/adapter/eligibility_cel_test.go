// internal/service/seckill/infrastructure/adapter/eligibility_cel_test.go
package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashsale/internal/service/seckill/domain"
)

func TestCelEligibility_EmptyRulePasses(t *testing.T) {
	engine, err := NewCelEligibilityEngine()
	require.NoError(t, err)

	ok, err := engine.Evaluate("", domain.EligibilityFact{UserID: 1})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCelEligibility_EvaluatesFact(t *testing.T) {
	engine, err := NewCelEligibilityEngine()
	require.NoError(t, err)

	now := time.Now()
	fact := domain.EligibilityFact{
		UserID: 42,
		Stock:  5,
		Now:    now,
		Begin:  now.Add(-time.Hour),
		End:    now.Add(time.Hour),
	}

	tests := []struct {
		rule string
		want bool
	}{
		{"stock > 0", true},
		{"stock > 10", false},
		{"user_id == 42", true},
		{"now > begin && now < end", true},
		{"user_id % 2 == 0 && stock >= 5", true},
	}
	for _, tt := range tests {
		ok, err := engine.Evaluate(tt.rule, fact)
		require.NoError(t, err, tt.rule)
		assert.Equal(t, tt.want, ok, tt.rule)
	}
}

func TestCelEligibility_InvalidRule(t *testing.T) {
	engine, err := NewCelEligibilityEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate("stock >", domain.EligibilityFact{})
	assert.Error(t, err)
}

func TestCelEligibility_NonBooleanRule(t *testing.T) {
	engine, err := NewCelEligibilityEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate("stock + 1", domain.EligibilityFact{Stock: 1})
	assert.Error(t, err)
}

package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func niftyUnderlying(sym string) string { return "NIFTY" }

func TestQtyForEntryUsesCapitalLotFormula(t *testing.T) {
	s := New(20000, DefaultLotSizes(), func(string) int64 { return 0 }, niftyUnderlying)

	qty, err := s.QtyForEntry("NIFTY25JUL23500CE", 100.00)
	require.NoError(t, err)
	// floor(20000 / (100*75)) = floor(2.67) = 2 lots * 75 = 150
	assert.Equal(t, int64(150), qty)
}

func TestQtyForEntryFloorsToAtLeastOneLot(t *testing.T) {
	s := New(1000, DefaultLotSizes(), func(string) int64 { return 0 }, niftyUnderlying)

	qty, err := s.QtyForEntry("NIFTY25JUL23500CE", 100.00)
	require.NoError(t, err)
	assert.Equal(t, int64(75), qty)
}

func TestQtyForEntryReusesOpenQtyNoFlip(t *testing.T) {
	s := New(20000, DefaultLotSizes(), func(string) int64 { return 150 }, niftyUnderlying)

	qty, err := s.QtyForEntry("NIFTY25JUL23500CE", 999.00)
	require.NoError(t, err)
	assert.Equal(t, int64(150), qty)
}

func TestQtyForEntryReusesAbsoluteValueOfNegativeOpenQty(t *testing.T) {
	s := New(20000, DefaultLotSizes(), func(string) int64 { return -75 }, niftyUnderlying)

	qty, err := s.QtyForEntry("NIFTY25JUL23500CE", 999.00)
	require.NoError(t, err)
	assert.Equal(t, int64(75), qty)
}

func TestQtyForEntryUnknownUnderlyingIsConfigError(t *testing.T) {
	s := New(20000, DefaultLotSizes(), func(string) int64 { return 0 }, func(string) string { return "FTSE" })

	_, err := s.QtyForEntry("FTSE25JULCE", 100.00)
	require.Error(t, err)
	var target *ErrUnknownUnderlying
	assert.ErrorAs(t, err, &target)
}

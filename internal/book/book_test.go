package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func TestUpdateAndTOB(t *testing.T) {
	b := New()
	err := b.Update(
		map[float64]float64{100: 1, 101: 2, 99: 3},
		map[float64]float64{103: 1, 102: 2, 104: 3},
		false,
	)
	require.NoError(t, err)

	bid, err := b.TOB(enum.SideBuy)
	require.NoError(t, err)
	assert.Equal(t, Level{Price: 101, Size: 2}, bid)

	ask, err := b.TOB(enum.SideSell)
	require.NoError(t, err)
	assert.Equal(t, Level{Price: 102, Size: 2}, ask)

	second, err := b.Level(enum.SideBuy, 2)
	require.NoError(t, err)
	assert.Equal(t, Level{Price: 100, Size: 1}, second)

	secondAsk, err := b.Level(enum.SideSell, 2)
	require.NoError(t, err)
	assert.Equal(t, Level{Price: 103, Size: 1}, secondAsk)
}

func TestUpdateZeroSizeRemovesLevel(t *testing.T) {
	b := New()
	require.NoError(t, b.Update(map[float64]float64{100: 1, 101: 2}, nil, false))
	require.NoError(t, b.Update(map[float64]float64{101: 0}, nil, false))

	assert.Zero(t, b.Size(enum.SideBuy, 101))
	tob, err := b.TOB(enum.SideBuy)
	require.NoError(t, err)
	assert.Equal(t, 100.0, tob.Price)

	// removing the last level empties the side
	require.NoError(t, b.Update(map[float64]float64{100: 0}, nil, false))
	assert.False(t, b.HasTOB(enum.SideBuy))
	_, err = b.TOB(enum.SideBuy)
	assert.ErrorIs(t, err, ErrNoSuchLevel)
}

func TestUpdateRejectsBadInput(t *testing.T) {
	b := New()
	err := b.Update(map[float64]float64{-1: 1}, nil, false)
	assert.ErrorIs(t, err, ErrBadPriceLevel)

	err = b.Update(map[float64]float64{100: -1}, nil, false)
	assert.ErrorIs(t, err, ErrNegativeSize)

	err = b.Update(nil, nil, false)
	assert.ErrorIs(t, err, ErrEmptyUpdate)
}

func TestSnapshotReplacesBothSides(t *testing.T) {
	b := New()
	require.NoError(t, b.Update(map[float64]float64{100: 1}, map[float64]float64{110: 1}, false))
	require.NoError(t, b.Update(map[float64]float64{90: 5}, map[float64]float64{95: 5}, true))

	assert.Zero(t, b.Size(enum.SideBuy, 100))
	assert.Zero(t, b.Size(enum.SideSell, 110))
	bid, err := b.TOB(enum.SideBuy)
	require.NoError(t, err)
	assert.Equal(t, Level{Price: 90, Size: 5}, bid)
	ask, err := b.TOB(enum.SideSell)
	require.NoError(t, err)
	assert.Equal(t, Level{Price: 95, Size: 5}, ask)
}

func TestDeltaUpdate(t *testing.T) {
	b := New()
	require.NoError(t, b.DeltaUpdate(map[float64]float64{100: 2}, map[float64]float64{110: 1}))
	require.NoError(t, b.DeltaUpdate(map[float64]float64{100: -1}, nil))
	assert.Equal(t, 1.0, b.Size(enum.SideBuy, 100))

	// a delta to exactly zero removes the level
	require.NoError(t, b.DeltaUpdate(map[float64]float64{100: -1}, nil))
	assert.False(t, b.HasTOB(enum.SideBuy))

	// a delta below zero is a fatal input error
	err := b.DeltaUpdate(nil, map[float64]float64{110: -2})
	assert.ErrorIs(t, err, ErrNegativeSize)
}

func TestDiff(t *testing.T) {
	lhs := New()
	require.NoError(t, lhs.Update(map[float64]float64{100: 5, 99: 3}, map[float64]float64{110: 4}, false))
	rhs := New()
	require.NoError(t, rhs.Update(map[float64]float64{100: 2}, map[float64]float64{110: 4}, false))

	res, err := Diff(lhs, rhs)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Size(enum.SideBuy, 100))
	assert.Equal(t, 3.0, res.Size(enum.SideBuy, 99))
	assert.Zero(t, res.Size(enum.SideSell, 110))
	assert.False(t, res.HasTOB(enum.SideSell))

	// inputs untouched
	assert.Equal(t, 5.0, lhs.Size(enum.SideBuy, 100))
	assert.Equal(t, 4.0, lhs.Size(enum.SideSell, 110))
}

func TestDiffMissingLevel(t *testing.T) {
	lhs := New()
	require.NoError(t, lhs.Update(map[float64]float64{100: 5}, nil, false))
	rhs := New()
	require.NoError(t, rhs.Update(map[float64]float64{101: 1}, nil, false))

	_, err := Diff(lhs, rhs)
	assert.ErrorIs(t, err, ErrMissingLevel)
}

func TestDiffNegativeResult(t *testing.T) {
	lhs := New()
	require.NoError(t, lhs.Update(map[float64]float64{100: 1}, nil, false))
	rhs := New()
	require.NoError(t, rhs.Update(map[float64]float64{100: 2}, nil, false))

	_, err := Diff(lhs, rhs)
	assert.ErrorIs(t, err, ErrNegativeSize)
}

func TestNoStoredLevelIsEverNonPositive(t *testing.T) {
	b := New()
	updates := []struct {
		bids map[float64]float64
		asks map[float64]float64
	}{
		{bids: map[float64]float64{100: 1, 101: 2}, asks: map[float64]float64{110: 1}},
		{bids: map[float64]float64{101: 0}, asks: map[float64]float64{110: 3, 111: 2}},
		{bids: map[float64]float64{100: 4, 99: 1}, asks: map[float64]float64{111: 0}},
	}
	for _, u := range updates {
		require.NoError(t, b.Update(u.bids, u.asks, false))
		for _, lvl := range append(b.Bids(), b.Asks()...) {
			assert.Greater(t, lvl.Size, 0.0)
			assert.Greater(t, lvl.Price, 0.0)
		}
	}
	assert.Equal(t, []Level{{Price: 100, Size: 4}, {Price: 99, Size: 1}}, b.Bids())
	assert.Equal(t, []Level{{Price: 110, Size: 3}}, b.Asks())
}

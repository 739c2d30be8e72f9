package rating

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustOneOnOne(t *testing.T) {
	winner, loser := uuid.New(), uuid.New()
	tableID := uuid.New()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	out := Adjust(nil, "race", tableID, at, []Result{
		{AccountID: winner, Score: 20},
		{AccountID: loser, Score: 12},
	})
	require.Len(t, out, 2)
	assert.Greater(t, out[0].Rating, 1500, "winner's rating should have gone up")
	assert.Less(t, out[1].Rating, 1500, "loser's rating should have gone down")
	assert.Less(t, out[0].Deviation, DefaultPhi)
	assert.Equal(t, tableID, *out[0].TableID)
	assert.Equal(t, at, out[1].Updated)
}

func TestAdjustTiesAndSolo(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	out := Adjust(nil, "race", uuid.New(), time.Now(), []Result{
		{AccountID: a, Score: 7},
		{AccountID: b, Score: 7},
	})
	require.Len(t, out, 2)
	assert.Equal(t, 1500, out[0].Rating)
	assert.Equal(t, 1500, out[1].Rating)

	assert.Nil(t, Adjust(nil, "race", uuid.New(), time.Now(), []Result{{AccountID: a, Score: 1}}))
}

func TestRankFractions(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	frac := rankFractions([]Result{
		{AccountID: a, Score: 3},
		{AccountID: b, Score: 9},
		{AccountID: c, Score: 3},
	})
	assert.Equal(t, 1.0, frac[b])
	assert.Equal(t, 0.25, frac[a])
	assert.Equal(t, 0.25, frac[c])
}

func TestRecordBuildsOnStoredRatings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	strong, weak := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		_, err := Record(ctx, m, "race", uuid.New(), time.Now(), []Result{
			{AccountID: strong, Score: 20},
			{AccountID: weak, Score: 5},
		})
		require.NoError(t, err)
	}
	s, err := Get(ctx, m, strong, "race")
	require.NoError(t, err)
	w, err := Get(ctx, m, weak, "race")
	require.NoError(t, err)
	assert.Greater(t, s.Rating, w.Rating)

	other, err := Get(ctx, m, strong, "chess")
	require.NoError(t, err)
	assert.Equal(t, Initial(strong, "chess"), other)
}

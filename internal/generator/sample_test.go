package generator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/billing-sandbox/internal/model"
)

func testSampleOptions() SampleOptions {
	opts := DefaultSampleOptions()
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func TestBuildSample_Deterministic(t *testing.T) {
	a, err := BuildSample(testSampleOptions())
	require.NoError(t, err)
	b, err := BuildSample(testSampleOptions())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBuildSample_Relationships(t *testing.T) {
	data, err := BuildSample(testSampleOptions())
	require.NoError(t, err)
	require.Len(t, data.Users, 500)

	users := make(map[int64]model.User)
	emails := make(map[string]bool)
	activated := 0
	for _, u := range data.Users {
		users[u.ID] = u
		assert.False(t, emails[u.Email], "duplicate email %s", u.Email)
		emails[u.Email] = true
		assert.False(t, u.CreatedAt.After(fixedNow))
		if u.ActivatedAt != nil {
			activated++
			assert.True(t, u.ActivatedAt.After(u.CreatedAt))
			assert.LessOrEqual(t, u.ActivatedAt.Sub(u.CreatedAt), 168*time.Hour)
		} else {
			assert.Nil(t, u.Plan, "unactivated user %d has a plan", u.ID)
		}
	}
	assert.InDelta(t, 0.7, float64(activated)/float64(len(data.Users)), 0.07)

	subsByUser := make(map[int64]model.UserSubscription)
	for _, s := range data.Subscriptions {
		u, ok := users[s.UserID]
		require.True(t, ok)
		require.NotNil(t, u.Plan)
		assert.Equal(t, *u.Plan, s.Plan)
		assert.Equal(t, PlanPrices[s.Plan], s.MRRCents)
		assert.False(t, s.StartedAt.Before(*u.ActivatedAt))
		if s.Status == model.SubscriptionCanceled {
			require.NotNil(t, s.CanceledAt)
			assert.True(t, s.CanceledAt.After(s.StartedAt))
		}
		subsByUser[s.UserID] = s
	}

	for _, e := range data.Events {
		u := users[e.UserID]
		require.NotNil(t, u.ActivatedAt)
		assert.False(t, e.CreatedAt.Before(*u.ActivatedAt))
		assert.Contains(t, eventTypes, e.Name)
		assert.Contains(t, eventSources, e.Properties.Source)
	}

	assert.NotEmpty(t, data.Charges)
	for _, c := range data.Charges {
		assert.Len(t, c.ID, len("ch_")+idHashLen)
		assert.Equal(t, "succeeded", c.Status)
	}
}

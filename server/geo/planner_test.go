package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func testArea(id string) Area {
	return Area{ID: id, Title: "Area " + id, Latitude: 45.81, Longitude: 15.98, RadiusMeters: 200}
}

func emptyStatus() CampaignStatus {
	return CampaignStatus{Finished: NewIDSet(), Suspended: NewIDSet()}
}

func TestPlan_Deduplication(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("later expiry wins for shared area", func(t *testing.T) {
		entries := []Entry{
			{ID: "m1", Geo: &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}}},
			{ID: "m2", Geo: &Geo{CampaignID: "c2", Areas: []Area{testArea("a1")}, ExpiryDate: timePtr(now.Add(time.Hour))}},
		}

		plan := Plan(entries, emptyStatus(), now)

		require.Len(t, plan.Regions, 1)
		assert.Equal(t, "a1", plan.Regions[0].ID)
		require.NotNil(t, plan.Regions[0].Expiry)
		assert.Equal(t, now.Add(time.Hour), *plan.Regions[0].Expiry)
		require.NotNil(t, plan.NextExpire)
		assert.Equal(t, now.Add(time.Hour), *plan.NextExpire)
		assert.Nil(t, plan.NextRefresh)
	})

	t.Run("latest of several expiries is kept", func(t *testing.T) {
		entries := []Entry{
			{ID: "m1", Geo: &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}, ExpiryDate: timePtr(now.Add(2 * time.Hour))}},
			{ID: "m2", Geo: &Geo{CampaignID: "c2", Areas: []Area{testArea("a1")}, ExpiryDate: timePtr(now.Add(5 * time.Hour))}},
			{ID: "m3", Geo: &Geo{CampaignID: "c3", Areas: []Area{testArea("a1")}, ExpiryDate: timePtr(now.Add(3 * time.Hour))}},
		}

		plan := Plan(entries, emptyStatus(), now)

		require.Len(t, plan.Regions, 1)
		assert.Equal(t, now.Add(5*time.Hour), *plan.Regions[0].Expiry)
		assert.Equal(t, now.Add(2*time.Hour), *plan.NextExpire)
	})

	t.Run("tie keeps first definition", func(t *testing.T) {
		first := testArea("a1")
		first.Title = "first"
		second := testArea("a1")
		second.Title = "second"
		expiry := now.Add(time.Hour)

		entries := []Entry{
			{ID: "m1", Geo: &Geo{CampaignID: "c1", Areas: []Area{first}, ExpiryDate: timePtr(expiry)}},
			{ID: "m2", Geo: &Geo{CampaignID: "c2", Areas: []Area{second}, ExpiryDate: timePtr(expiry)}},
		}

		plan := Plan(entries, emptyStatus(), now)

		require.Len(t, plan.Regions, 1)
		assert.Equal(t, "first", plan.Regions[0].Title)
	})

	t.Run("distinct areas keep first-seen order", func(t *testing.T) {
		entries := []Entry{
			{ID: "m1", Geo: &Geo{CampaignID: "c1", Areas: []Area{testArea("b"), testArea("a")}}},
			{ID: "m2", Geo: &Geo{CampaignID: "c2", Areas: []Area{testArea("c"), testArea("a")}}},
		}

		plan := Plan(entries, emptyStatus(), now)

		require.Len(t, plan.Regions, 3)
		assert.Equal(t, "b", plan.Regions[0].ID)
		assert.Equal(t, "a", plan.Regions[1].ID)
		assert.Equal(t, "c", plan.Regions[2].ID)
	})
}

func TestPlan_Eligibility(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		geo    *Geo
		status CampaignStatus
		want   int
	}{
		{
			name: "active campaign contributes",
			geo:  &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}},
			want: 1,
		},
		{
			name:   "finished campaign excluded",
			geo:    &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}},
			status: CampaignStatus{Finished: NewIDSet("c1")},
			want:   0,
		},
		{
			name:   "suspended campaign excluded",
			geo:    &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}},
			status: CampaignStatus{Suspended: NewIDSet("c1")},
			want:   0,
		},
		{
			name: "pending campaign excluded",
			geo:  &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}, StartDate: timePtr(now.Add(time.Minute))},
			want: 0,
		},
		{
			name: "campaign starting now contributes",
			geo:  &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}, StartDate: timePtr(now)},
			want: 1,
		},
		{
			name: "expired campaign excluded",
			geo:  &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}, ExpiryDate: timePtr(now)},
			want: 0,
		},
		{
			name: "invalid areas excluded",
			geo:  &Geo{CampaignID: "c1", Areas: []Area{{ID: "bad", Latitude: 95, Longitude: 10, RadiusMeters: 100}, {ID: "zero", RadiusMeters: 0}}},
			want: 0,
		},
		{
			name: "missing area list",
			geo:  &Geo{CampaignID: "c1"},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Plan([]Entry{{ID: "m1", Geo: tt.geo}}, tt.status, now)
			assert.Len(t, plan.Regions, tt.want)
		})
	}

	t.Run("entry without payload is skipped", func(t *testing.T) {
		plan := Plan([]Entry{{ID: "m1"}}, emptyStatus(), now)
		assert.Empty(t, plan.Regions)
		assert.Nil(t, plan.NextExpire)
		assert.Nil(t, plan.NextRefresh)
	})
}

func TestPlan_NextDates(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("refresh is earliest pending start", func(t *testing.T) {
		entries := []Entry{
			{ID: "m1", Geo: &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}, StartDate: timePtr(now.Add(3 * time.Hour))}},
			{ID: "m2", Geo: &Geo{CampaignID: "c2", Areas: []Area{testArea("a2")}, StartDate: timePtr(now.Add(time.Hour))}},
			{ID: "m3", Geo: &Geo{CampaignID: "c3", Areas: []Area{testArea("a3")}, StartDate: timePtr(now.Add(-time.Hour))}},
		}

		plan := Plan(entries, emptyStatus(), now)

		require.NotNil(t, plan.NextRefresh)
		assert.Equal(t, now.Add(time.Hour), *plan.NextRefresh)
		require.Len(t, plan.Regions, 1)
		assert.Equal(t, "a3", plan.Regions[0].ID)
	})

	t.Run("finished pending campaign does not schedule refresh", func(t *testing.T) {
		entries := []Entry{
			{ID: "m1", Geo: &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}, StartDate: timePtr(now.Add(time.Hour))}},
		}

		plan := Plan(entries, CampaignStatus{Finished: NewIDSet("c1")}, now)
		assert.Nil(t, plan.NextRefresh)
	})

	t.Run("expire scan ignores eligibility", func(t *testing.T) {
		entries := []Entry{
			{ID: "m1", Geo: &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}, ExpiryDate: timePtr(now.Add(30 * time.Minute))}},
			{ID: "m2", Geo: &Geo{CampaignID: "c2", Areas: []Area{testArea("a2")}, ExpiryDate: timePtr(now.Add(time.Hour))}},
		}

		plan := Plan(entries, CampaignStatus{Finished: NewIDSet("c1")}, now)

		require.NotNil(t, plan.NextExpire)
		assert.Equal(t, now.Add(30*time.Minute), *plan.NextExpire)
	})

	t.Run("already expired entries do not schedule expire", func(t *testing.T) {
		entries := []Entry{
			{ID: "m1", Geo: &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}, ExpiryDate: timePtr(now.Add(-time.Minute))}},
		}

		plan := Plan(entries, emptyStatus(), now)
		assert.Nil(t, plan.NextExpire)
	})

	t.Run("entries without valid areas do not schedule expire", func(t *testing.T) {
		entries := []Entry{
			{ID: "m1", Geo: &Geo{CampaignID: "c1", ExpiryDate: timePtr(now.Add(time.Hour))}},
		}

		plan := Plan(entries, emptyStatus(), now)
		assert.Nil(t, plan.NextExpire)
	})

	t.Run("next dates are never before now", func(t *testing.T) {
		entries := []Entry{
			{ID: "m1", Geo: &Geo{CampaignID: "c1", Areas: []Area{testArea("a1")}, ExpiryDate: timePtr(now)}},
			{ID: "m2", Geo: &Geo{CampaignID: "c2", Areas: []Area{testArea("a2")}, StartDate: timePtr(now.Add(time.Second))}},
		}

		plan := Plan(entries, emptyStatus(), now)

		require.NotNil(t, plan.NextExpire)
		require.NotNil(t, plan.NextRefresh)
		assert.False(t, plan.NextExpire.Before(now))
		assert.False(t, plan.NextRefresh.Before(now))
	})
}

func TestClampToNow(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	assert.Nil(t, ClampToNow(nil, now))
	assert.Equal(t, now, *ClampToNow(timePtr(now.Add(-time.Hour)), now))
	assert.Equal(t, now.Add(time.Hour), *ClampToNow(timePtr(now.Add(time.Hour)), now))
}

package store

import (
	"sync"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

const (
	finishedCampaignsKey  = "geo_campaigns_finished"
	suspendedCampaignsKey = "geo_campaigns_suspended"
)

// StatusStore persists the finished and suspended campaign sets.
// It is written only when a reporting result is applied.
type StatusStore struct {
	kv KVStore
	mu sync.Mutex
}

// NewStatusStore creates a campaign status store on top of kv.
func NewStatusStore(kv KVStore) *StatusStore {
	return &StatusStore{kv: kv}
}

// Get returns the current campaign status. Missing sets are empty.
func (s *StatusStore) Get() (geo.CampaignStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

// Apply folds a reporting result into the stored status.
//
// Finished campaigns are final. The suspended and inactive lists of a result
// describe every campaign the backend currently holds back, so together they
// replace the stored suspended set. A campaign missing from both lists is
// reactivated by the next successful report of any campaign.
func (s *StatusStore) Apply(result geo.ReportResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished, err := s.loadSet(finishedCampaignsKey)
	if err != nil {
		return err
	}
	for _, id := range result.FinishedCampaignIDs {
		finished.Add(id)
	}

	suspended := geo.NewIDSet()
	for _, ids := range [][]string{result.SuspendedCampaignIDs, result.InactiveCampaignIDs} {
		for _, id := range ids {
			if !finished.Has(id) {
				suspended.Add(id)
			}
		}
	}

	if err := setJSON(s.kv, finishedCampaignsKey, finished.Sorted()); err != nil {
		return err
	}
	return setJSON(s.kv, suspendedCampaignsKey, suspended.Sorted())
}

// Clear removes both campaign sets.
func (s *StatusStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := deleteKey(s.kv, finishedCampaignsKey); err != nil {
		return err
	}
	return deleteKey(s.kv, suspendedCampaignsKey)
}

func (s *StatusStore) load() (geo.CampaignStatus, error) {
	finished, err := s.loadSet(finishedCampaignsKey)
	if err != nil {
		return geo.CampaignStatus{}, err
	}
	suspended, err := s.loadSet(suspendedCampaignsKey)
	if err != nil {
		return geo.CampaignStatus{}, err
	}
	return geo.CampaignStatus{Finished: finished, Suspended: suspended}, nil
}

func (s *StatusStore) loadSet(key string) (geo.IDSet, error) {
	var ids []string
	if _, err := getJSON(s.kv, key, &ids); err != nil {
		return nil, err
	}
	return geo.NewIDSet(ids...), nil
}

package scheduler

import (
	"github.com/mattermost/mattermost/server/public/pluginapi/cluster"
)

// Job is a scheduled job that can be closed.
type Job interface {
	Close() error
}

// JobScheduler schedules cluster-aware jobs.
type JobScheduler interface {
	Schedule(
		jobID string,
		nextWaitInterval cluster.NextWaitInterval,
		callback func(),
	) (Job, error)
}

// ClusterJobScheduler runs jobs through Mattermost's cluster job system, so
// that only one server of a cluster runs a given job.
type ClusterJobScheduler struct {
	api cluster.JobPluginAPI
}

// NewClusterJobScheduler creates a scheduler backed by cluster jobs.
func NewClusterJobScheduler(api cluster.JobPluginAPI) *ClusterJobScheduler {
	return &ClusterJobScheduler{
		api: api,
	}
}

// Schedule creates a cluster-aware scheduled job.
func (s *ClusterJobScheduler) Schedule(
	jobID string,
	nextWaitInterval cluster.NextWaitInterval,
	callback func(),
) (Job, error) {
	job, err := cluster.Schedule(s.api, jobID, nextWaitInterval, callback)
	if err != nil {
		return nil, err
	}
	return job, nil
}

package job

import (
	"context"

	"github.com/askbase/askbase/internal/vectorstore"
)

// VectorPingJob keeps the vector index connection warm and surfaces
// outages in the logs before a user request hits them.
type VectorPingJob struct {
	store vectorstore.Store
}

func NewVectorPingJob(store vectorstore.Store) *VectorPingJob {
	return &VectorPingJob{store: store}
}

func (j *VectorPingJob) Name() string {
	return "vector_ping"
}

func (j *VectorPingJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	return j.store.Ping(ctx)
}

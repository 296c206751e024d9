package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDiscoveryPush pushes public project metadata to the discovery
	// catalogue.
	TaskDiscoveryPush = "discovery:push"
	// TaskCompletenessScan recomputes sample completeness counters.
	TaskCompletenessScan = "samples:completeness_scan"
)

// DiscoveryPushPayload selects what to push. A zero ProjectID means every
// project.
type DiscoveryPushPayload struct {
	ProjectID int64 `json:"project_id"`
	Force     bool  `json:"force"`
}

// NewDiscoveryPushTask constructs an Asynq task.
func NewDiscoveryPushTask(payload DiscoveryPushPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDiscoveryPush, data), nil
}

// NewCompletenessScanTask constructs an Asynq task.
func NewCompletenessScanTask() *asynq.Task {
	return asynq.NewTask(TaskCompletenessScan, nil)
}

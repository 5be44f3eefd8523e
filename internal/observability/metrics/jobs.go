// Package metrics defines the standard metric shapes emitted by the job system.
package metrics

import (
	"time"

	obserrors "github.com/siqueira-campos/imoveis-jobs/internal/observability/errors"
	"github.com/siqueira-campos/imoveis-jobs/internal/observability/statsd"
)

// Result values used as metric tags.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	// ResultNoop marks a completed operation that changed nothing, e.g. a
	// job whose lease was lost before the result landed.
	ResultNoop = "noop"
	// ResultCached marks a job completed from the result cache without
	// running its handler.
	ResultCached = "cached"
)

// JobMetric captures one job lifecycle event for metric emission.
type JobMetric struct {
	JobType    string
	Queue      string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits the job.transition counter and, when a duration is
// known, the job.duration timing. A nil sink drops the event.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_type":   in.JobType,
		"queue":      in.Queue,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags copies a tag map so two emissions never share one map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

package status

// Report is the aggregated view of a finished (or in-flight) run.
type Report struct {
	// Jobs maps each job id to its aggregate outcome.
	Jobs map[string]Outcome
	// Order lists job ids in the order they were passed to Aggregate.
	Order    []string
	Pipeline Outcome
}

// Failed lists the jobs that aggregated to Failed, in report order.
func (r Report) Failed() []string {
	var out []string
	for _, id := range r.Order {
		if r.Jobs[id] == Failed {
			out = append(out, id)
		}
	}
	return out
}

// AggregateJob folds the outcomes of a job's instances into one outcome.
//
// A job with no instances is Skipped. While any instance is not terminal the
// result is Running (if one runs) or Pending. Membership in allow only changes
// how Succeeded/Skipped mixes are read; an allowed job with a Failed instance
// is still Failed, and it is the pipeline that tolerates it.
func AggregateJob(job string, outcomes []Outcome, allow Set) Outcome {
	if len(outcomes) == 0 {
		return Skipped
	}

	counts := make(map[Outcome]int, 6)
	for _, o := range outcomes {
		counts[o]++
	}
	if counts[Running] > 0 {
		return Running
	}
	if counts[Pending] > 0 {
		return Pending
	}

	n := len(outcomes)
	allowed := allow.Has(job)
	failed := counts[Failed] > 0

	switch {
	case failed:
		return Failed
	case counts[Skipped] == n:
		return Skipped
	case counts[Succeeded] == n:
		return Succeeded
	case allowed && counts[Succeeded]+counts[Skipped] == n:
		return Succeeded
	case counts[Cancelled] > 0:
		return Cancelled
	}
	// Succeeded and Skipped mixed on a job that is not allowed to skip.
	return Skipped
}

// PipelineOutcome decides the pipeline verdict from per-job aggregates.
//
// A job passes when it Succeeded, when it Skipped and is not required, or when
// it Failed, Cancelled or Skipped and is in allow. Any job still in flight
// keeps the pipeline Running/Pending.
func PipelineOutcome(jobs []string, perJob map[string]Outcome, allow, required Set) Outcome {
	verdict := Succeeded
	for _, id := range jobs {
		o := perJob[id]
		switch o {
		case Running:
			return Running
		case Pending:
			return Pending
		case Succeeded:
		case Skipped:
			if required.Has(id) && !allow.Has(id) {
				verdict = Failed
			}
		case Failed, Cancelled:
			if !allow.Has(id) {
				verdict = Failed
			}
		}
	}
	return verdict
}

// Aggregate computes every job's outcome from its instances and the pipeline
// verdict over all of them.
func Aggregate(jobs []string, perJob map[string][]Outcome, allow, required Set) Report {
	r := Report{
		Jobs:  make(map[string]Outcome, len(jobs)),
		Order: append([]string(nil), jobs...),
	}
	for _, id := range jobs {
		r.Jobs[id] = AggregateJob(id, perJob[id], allow)
	}
	r.Pipeline = PipelineOutcome(jobs, r.Jobs, allow, required)
	return r
}

package service

import (
	"time"

	"github.com/nvijayanand79/tracklite-sub001/internal/enum"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
)

// TimelineStep is one entry of the owner tracking timeline.
type TimelineStep struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Done      bool       `json:"done"`
	Current   bool       `json:"current"`
	Timestamp *time.Time `json:"timestamp"`
}

var timelineSteps = []struct {
	key   string
	label string
}{
	{"received", "Received at Branch"},
	{"forwarded", "Forwarded to Central"},
	{"central", "Received at Central"},
	{"queued", "Lab Queued"},
	{"in_progress", "In Progress"},
	{"completed", "Completed"},
	{"report_ready", "Report Ready"},
	{"communicated", "Communicated"},
	{"invoiced", "Invoiced"},
	{"paid", "Paid"},
}

// BuildTimeline derives the 10-step owner timeline from the actual pipeline
// rows. A step is done when the row that represents it exists and has reached
// the matching state; the first not-done step is current.
func BuildTimeline(d store.TrackingDetail) []TimelineStep {
	done := make([]bool, len(timelineSteps))
	stamps := make([]*time.Time, len(timelineSteps))

	markDone := func(i int, t time.Time) {
		done[i] = true
		ts := t
		stamps[i] = &ts
	}

	markDone(0, d.Receipt.CreatedAt)
	if d.Receipt.ForwardToCentral {
		markDone(1, d.Receipt.CreatedAt)
		markDone(2, d.Receipt.CreatedAt)
	}

	if lt := d.LabTest; lt != nil {
		markDone(3, lt.CreatedAt)
		switch lt.TestStatus {
		case enum.TestStatusInProgress:
			markDone(4, lt.UpdatedAt)
		case enum.TestStatusCompleted:
			markDone(4, lt.UpdatedAt)
			markDone(5, lt.UpdatedAt)
		}
	}

	if rp := d.Report; rp != nil {
		if rp.FinalStatus == enum.FinalStatusApproved {
			markDone(6, rp.UpdatedAt)
		}
		if rp.CommStatus == enum.CommStatusDispatched || rp.CommStatus == enum.CommStatusDelivered {
			markDone(7, rp.UpdatedAt)
		}
	}

	if inv := d.Invoice; inv != nil {
		markDone(8, inv.IssuedAt)
		if inv.Status == enum.InvoiceStatusPaid {
			markDone(9, inv.UpdatedAt)
			if inv.PaidAt.Valid {
				t := inv.PaidAt.Time
				stamps[9] = &t
			}
		}
	}

	// The cursor sits right after the furthest done step, so skipped steps
	// (forwarded/central on a local pipeline) never hold it back.
	current := -1
	last := 0
	for i, ok := range done {
		if ok {
			last = i
		}
	}
	if last < len(timelineSteps)-1 {
		current = last + 1
	}

	steps := make([]TimelineStep, len(timelineSteps))
	for i, s := range timelineSteps {
		steps[i] = TimelineStep{
			Key:       s.key,
			Label:     s.label,
			Done:      done[i],
			Current:   i == current,
			Timestamp: stamps[i],
		}
	}
	return steps
}

// CurrentStepKey returns the key of the current step, or the last step's key
// when the pipeline is fully done.
func CurrentStepKey(steps []TimelineStep) string {
	for _, s := range steps {
		if s.Current {
			return s.Key
		}
	}
	return steps[len(steps)-1].Key
}

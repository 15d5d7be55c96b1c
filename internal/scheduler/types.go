// Package scheduler runs the periodic cycles of the alert portal: the
// hourly fluctuation check, the morning summary, the pending-message sweep
// and the compliance warning pass. The same Runner serves the long-running
// cron process, the EventBridge Lambda and the /cron HTTP triggers.
package scheduler

import "time"

// Cycle names a scheduled unit of work.
type Cycle string

const (
	CycleCheckAlerts     Cycle = "check_alerts"
	CycleDailySummary    Cycle = "daily_summary"
	CycleSendPending     Cycle = "send_pending"
	CycleCheckCompliance Cycle = "check_compliance"
)

// Cycles lists every cycle in trigger order.
var Cycles = []Cycle{CycleCheckAlerts, CycleDailySummary, CycleSendPending, CycleCheckCompliance}

func (c Cycle) Valid() bool {
	for _, k := range Cycles {
		if c == k {
			return true
		}
	}
	return false
}

// CyclePayload is the JSON sent by EventBridge rules to the scheduler
// Lambda:
//
//	{
//	  "cycle": "daily_summary",
//	  "reference_time": "2026-01-10T07:00:00Z"  // optional
//	}
//
// ReferenceTime selects the lock bucket, so a manual re-run for a past day
// does not collide with today's run.
type CyclePayload struct {
	Cycle         Cycle      `json:"cycle"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// Result reports one Run.
type Result struct {
	Cycle   Cycle  `json:"cycle"`
	LockID  string `json:"lockId"`
	Skipped bool   `json:"skipped"`
	Items   int    `json:"items"`
	Report  any    `json:"report,omitempty"`
}

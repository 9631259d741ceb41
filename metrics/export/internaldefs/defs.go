package internaldefs

import (
	goFlow "github.com/MrEthical07/goFlow"
)

// CounterDef binds a MetricID to its stable exported name and help text.
type CounterDef struct {
	ID   goFlow.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its stable exported name.
type HistogramDef struct {
	ID   goFlow.MetricID
	Name string
	Help string
}

// CounterDefs is the closed list of exported counters. Names are part of the
// monitoring contract and must stay stable.
var CounterDefs = []CounterDef{
	{ID: goFlow.MetricFlowInitiated, Name: "goflow_flow_initiated_total", Help: "Challenge flows initiated with the vendor."},
	{ID: goFlow.MetricFlowReentry, Name: "goflow_flow_reentry_total", Help: "Re-entry polls of pending flows."},
	{ID: goFlow.MetricFlowSuccess, Name: "goflow_flow_success_total", Help: "Flows completed with a successful outcome."},
	{ID: goFlow.MetricFlowFailed, Name: "goflow_flow_failed_total", Help: "Flows completed with a failed outcome."},
	{ID: goFlow.MetricFlowPending, Name: "goflow_flow_pending_total", Help: "Initiations that left the flow pending a challenge."},
	{ID: goFlow.MetricFlowError, Name: "goflow_flow_error_total", Help: "Authenticate calls converted into internal-error envelopes."},
	{ID: goFlow.MetricLockContended, Name: "goflow_lock_contended_total", Help: "Initiation attempts denied by the per-flow lock."},
	{ID: goFlow.MetricChallengeUnavailable, Name: "goflow_challenge_unavailable_total", Help: "Vendor calls that exhausted their retry budget."},
	{ID: goFlow.MetricReentryFailOpen, Name: "goflow_reentry_fail_open_total", Help: "Status reads that failed open to pending."},
	{ID: goFlow.MetricCallbackReceived, Name: "goflow_callback_received_total", Help: "Vendor callbacks received for pending flows."},
	{ID: goFlow.MetricCallbackTokenMissing, Name: "goflow_callback_token_missing_total", Help: "Vendor callbacks received without a token."},
}

// HistogramDefs is the closed list of exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: goFlow.MetricAuthenticateLatency, Name: "goflow_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the flow engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the flow engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form the
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

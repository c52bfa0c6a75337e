package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	MessagesReceived    atomic.Int64
	MessagesRateLimited atomic.Int64
	MessagesRejected    atomic.Int64

	DBWriteSuccess      atomic.Int64
	DBWriteFailures     atomic.Int64
	DBChannelDrops      atomic.Int64
	StateChannelDrops   atomic.Int64
	ArrivalChannelDrops atomic.Int64
	ArrivalFailures     atomic.Int64

	GeofenceTransitions atomic.Int64
	ArrivalsRecorded    atomic.Int64
	ArrivalsMissed      atomic.Int64

	FuelAnalyses      atomic.Int64
	TheftFlags        atomic.Int64
	RiskAssessments   atomic.Int64
	RiskBatchFailures atomic.Int64

	EventsPublished     atomic.Int64
	EventPublishFailure atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "compliance_messages_received_total %d\n", MessagesReceived.Load())
	fmt.Fprintf(w, "compliance_messages_rate_limited_total %d\n", MessagesRateLimited.Load())
	fmt.Fprintf(w, "compliance_messages_rejected_total %d\n", MessagesRejected.Load())
	fmt.Fprintf(w, "compliance_db_write_success_total %d\n", DBWriteSuccess.Load())
	fmt.Fprintf(w, "compliance_db_write_failures_total %d\n", DBWriteFailures.Load())
	fmt.Fprintf(w, "compliance_db_channel_drops_total %d\n", DBChannelDrops.Load())
	fmt.Fprintf(w, "compliance_state_channel_drops_total %d\n", StateChannelDrops.Load())
	fmt.Fprintf(w, "compliance_arrival_channel_drops_total %d\n", ArrivalChannelDrops.Load())
	fmt.Fprintf(w, "compliance_arrival_failures_total %d\n", ArrivalFailures.Load())
	fmt.Fprintf(w, "compliance_geofence_transitions_total %d\n", GeofenceTransitions.Load())
	fmt.Fprintf(w, "compliance_arrivals_recorded_total %d\n", ArrivalsRecorded.Load())
	fmt.Fprintf(w, "compliance_arrivals_missed_total %d\n", ArrivalsMissed.Load())
	fmt.Fprintf(w, "compliance_fuel_analyses_total %d\n", FuelAnalyses.Load())
	fmt.Fprintf(w, "compliance_theft_flags_total %d\n", TheftFlags.Load())
	fmt.Fprintf(w, "compliance_risk_assessments_total %d\n", RiskAssessments.Load())
	fmt.Fprintf(w, "compliance_risk_batch_failures_total %d\n", RiskBatchFailures.Load())
	fmt.Fprintf(w, "compliance_events_published_total %d\n", EventsPublished.Load())
	fmt.Fprintf(w, "compliance_event_publish_failures_total %d\n", EventPublishFailure.Load())
}

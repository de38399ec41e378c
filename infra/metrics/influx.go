package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/fieldops/dispatchd/core/metrics"
	"github.com/fieldops/dispatchd/infra/logger"
)

// InfluxSink writes assignment events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns
// a Nop sink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.Nop{}
	}
	return sink
}

// RecordAssignment writes one assignment decision as line protocol.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_assignment").
		AddTag("dispatch_id", ev.DispatchID).
		AddTag("city", ev.City).
		AddTag("level", ev.Level).
		AddTag("assigned", strconv.FormatBool(ev.Assigned)).
		AddTag("component", "assignment_engine")
	if ev.TechnicianID != "" {
		p = p.AddTag("technician_id", ev.TechnicianID)
	}
	if ev.Reason != "" {
		p = p.AddField("reason", ev.Reason)
	}
	p = p.AddField("distance_km", round3(ev.DistanceKM)).
		AddField("success_probability", round3(ev.SuccessProb)).
		AddField("final_score", round3(ev.FinalScore)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRunSummary writes the batch-level rollup.
func (s *InfluxSink) RecordRunSummary(sum coremetrics.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_run").
		AddTag("run_id", sum.RunID).
		AddTag("estimator", sum.Estimator).
		AddTag("component", "assignment_engine").
		AddField("total", sum.Total).
		AddField("assigned", sum.Assigned).
		AddField("unassigned", sum.Unassigned).
		AddField("assignment_rate", round3(sum.AssignmentRate)).
		AddField("avg_distance_km", round3(sum.AvgDistanceKM)).
		AddField("avg_success_probability", round3(sum.AvgSuccessProb)).
		AddField("duration_ms", round3(sum.Duration.Seconds()*1000)).
		SetTime(sum.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Flush is a no-op: the blocking write API persists on every call.
func (s *InfluxSink) Flush() error { return nil }

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// Package app wires configuration, storage, training and the assignment
// engine into one batch run.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldops/dispatchd/config"
	"github.com/fieldops/dispatchd/core/assign"
	"github.com/fieldops/dispatchd/core/history"
	coremetrics "github.com/fieldops/dispatchd/core/metrics"
	"github.com/fieldops/dispatchd/core/perf"
	"github.com/fieldops/dispatchd/core/predict"
	"github.com/fieldops/dispatchd/core/skills"
	"github.com/fieldops/dispatchd/infra/logger"
	"github.com/fieldops/dispatchd/infra/metrics"
	"github.com/fieldops/dispatchd/infra/store"
)

// Service runs dispatch assignment batches.
type Service struct {
	cfg  *config.Config
	sink coremetrics.Sink
	log  logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	sink, err := metrics.NewSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	return &Service{cfg: cfg, sink: sink, log: logger.New("service")}, nil
}

// Run executes one batch: load inputs, train the estimator, assign every
// dispatch and persist the results.
func (s *Service) Run(ctx context.Context) error {
	st, err := store.Open(ctx, s.cfg.Store, s.log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			s.log.Errorf("store close: %v", err)
		}
	}()

	dispatches, err := st.Dispatches(ctx)
	if err != nil {
		return fmt.Errorf("load dispatches: %w", err)
	}
	techs, err := st.Technicians(ctx)
	if err != nil {
		return fmt.Errorf("load technicians: %w", err)
	}
	avail, err := st.Availability(ctx)
	if err != nil {
		return fmt.Errorf("load availability: %w", err)
	}
	records, err := st.History(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	s.log.Infof("loaded %d dispatches, %d technicians, %d history records",
		len(dispatches), len(techs), len(records))

	matcher := skills.NewMatcher(skills.DefaultTaxonomy())
	builder := history.NewBuilder(matcher, techs, s.cfg.Model.EnableEnhancedModel, s.log)
	if s.cfg.Model.LearnSkillCompat {
		matcher.Learn(builder.PairOutcomes(records))
	}

	table, err := builder.Build(records)
	if err != nil {
		if !errors.Is(err, history.ErrNoUsableHistory) {
			return fmt.Errorf("build history features: %w", err)
		}
		s.log.Warnf("no usable history, running without trained models")
		table = nil
	}

	// Confidence always needs tier multipliers; the rule table only gets
	// them when they were actually learned, otherwise it keeps its static
	// baselines.
	multipliers := predict.DefaultMultipliers()
	var learned predict.TierMultipliers
	if s.cfg.Model.LearnMultipliers && table != nil {
		learned = predict.LearnMultipliers(table)
		multipliers = learned
	}

	estimator := predict.Train(table, predict.TrainOptions{
		EnableEnhanced: s.cfg.Model.EnableEnhancedModel,
		RuleWeight:     s.cfg.Model.RuleWeight,
		Multipliers:    learned,
	}, s.log)

	if s.cfg.Model.EnablePerformanceTracking && table != nil {
		tracker := perf.Build(table)
		s.log.Infof("performance tracking enabled for %d technicians", tracker.Len())
		estimator = predict.Adjusted{Base: estimator, Tracker: tracker}
	}

	weights := assign.Weights{
		Success:    s.cfg.Assignment.WeightSuccess,
		Confidence: s.cfg.Assignment.WeightConfidence,
	}
	switch {
	case s.cfg.Assignment.UseSuccessOnly:
		weights = assign.Weights{Success: 1, Confidence: 0}
	case s.cfg.Assignment.EnableDynamicWeights:
		weights = assign.OptimizeWeights(table, s.log)
	}

	selector := &assign.Selector{
		Techs:     techs,
		Avail:     avail,
		Matcher:   matcher,
		Estimator: estimator,
		Sink:      s.sink,
		Log:       logger.New("selector"),
		Opts: assign.Options{
			UseML:               s.cfg.Assignment.UseMLAssignment,
			MinSuccessThreshold: s.cfg.Assignment.MinSuccessThreshold,
			MaxCapacityRatio:    s.cfg.Assignment.MaxCapacityRatio,
			Weights:             weights,
			Multipliers:         multipliers,
			IdealDistanceKM:     s.cfg.Assignment.IdealDistanceKM,
			MaxDistanceKM:       s.cfg.Assignment.MaxDistanceKM,
		},
	}
	res := selector.Run(dispatches)

	if err := st.WriteAssignments(ctx, res.RunID, res.Assignments); err != nil {
		return fmt.Errorf("write assignments: %w", err)
	}

	sum := res.Summary
	s.log.Infof("run %s complete: assigned=%d unassigned=%d rate=%.1f%% avg_distance=%.1fkm avg_success=%.2f warnings=%d",
		res.RunID, sum.Assigned, sum.Unassigned, 100*sum.AssignmentRate,
		sum.AvgDistanceKM, sum.AvgSuccessProb, sum.WarningCount)
	for level, n := range sum.LevelCounts {
		s.log.Debugf("level %s: %d dispatches", level, n)
	}
	if sum.IncumbentRetained+sum.IncumbentReplaced > 0 {
		s.log.Infof("incumbent comparison: retained=%d replaced=%d",
			sum.IncumbentRetained, sum.IncumbentReplaced)
	}
	return nil
}

// Close flushes and releases the metrics sink.
func (s *Service) Close() error {
	if err := s.sink.Flush(); err != nil {
		s.log.Errorf("sink flush: %v", err)
	}
	return s.sink.Close()
}

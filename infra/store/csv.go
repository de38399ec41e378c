package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/dispatchd/core/model"
	"github.com/fieldops/dispatchd/infra/logger"
)

// Default file names inside the CSV data directory.
const (
	DispatchesFile   = "dispatches.csv"
	TechniciansFile  = "technicians.csv"
	AvailabilityFile = "availability.csv"
	HistoryFile      = "history.csv"
	AssignmentsFile  = "assignments.csv"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CSVStore reads inputs from and writes assignments to a directory of CSV
// files. Rows that fail to parse are logged and skipped rather than failing
// the batch.
type CSVStore struct {
	dir string
	log logger.Logger
}

// NewCSVStore returns a store rooted at dir.
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{dir: dir, log: logger.New("csv-store")}
}

func (s *CSVStore) Dispatches(ctx context.Context) ([]model.Dispatch, error) {
	rows, err := s.read(ctx, DispatchesFile)
	if err != nil {
		return nil, err
	}
	out := make([]model.Dispatch, 0, len(rows))
	for _, r := range rows {
		d := model.Dispatch{
			ID:                r.str("dispatch_id"),
			RequiredSkill:     r.str("required_skill"),
			City:              r.str("city"),
			Latitude:          r.float("latitude"),
			Longitude:         r.float("longitude"),
			Priority:          model.Priority(r.str("priority")),
			ServiceTier:       r.str("service_tier"),
			Equipment:         r.str("equipment"),
			FirstTimeFix:      r.boolean("first_time_fix"),
			InitialTechnician: r.str("initial_technician"),
		}
		d.Appointment, err = parseTime(r.str("appointment"))
		if err != nil {
			s.log.Warnf("dispatch %s: %v, skipping row", d.ID, err)
			continue
		}
		if err := d.Validate(); err != nil {
			s.log.Warnf("skipping dispatch row: %v", err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *CSVStore) Technicians(ctx context.Context) ([]model.Technician, error) {
	rows, err := s.read(ctx, TechniciansFile)
	if err != nil {
		return nil, err
	}
	out := make([]model.Technician, 0, len(rows))
	for _, r := range rows {
		t := model.Technician{
			ID:           r.str("technician_id"),
			PrimarySkill: r.str("primary_skill"),
			City:         r.str("city"),
			Latitude:     r.float("latitude"),
			Longitude:    r.float("longitude"),
			Capacity:     int(r.float("capacity")),
			Assigned:     int(r.float("assigned")),
		}
		if secondary := r.str("secondary_skills"); secondary != "" {
			for _, sk := range strings.Split(secondary, "|") {
				if sk = strings.TrimSpace(sk); sk != "" {
					t.SecondarySkills = append(t.SecondarySkills, sk)
				}
			}
		}
		if err := t.Validate(); err != nil {
			s.log.Warnf("skipping technician row: %v", err)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *CSVStore) Availability(ctx context.Context) (*model.AvailabilitySet, error) {
	rows, err := s.read(ctx, AvailabilityFile)
	if err != nil {
		return nil, err
	}
	avail := model.NewAvailabilitySet()
	for _, r := range rows {
		day, err := parseTime(r.str("date"))
		if err != nil {
			s.log.Warnf("availability for %s: %v, skipping row", r.str("technician_id"), err)
			continue
		}
		avail.Set(r.str("technician_id"), day, r.boolean("available"))
	}
	return avail, nil
}

func (s *CSVStore) History(ctx context.Context) ([]model.HistoryRecord, error) {
	rows, err := s.read(ctx, HistoryFile)
	if err != nil {
		return nil, err
	}
	out := make([]model.HistoryRecord, 0, len(rows))
	for _, r := range rows {
		h := model.HistoryRecord{
			DispatchID:    r.str("dispatch_id"),
			RequiredSkill: r.str("required_skill"),
			City:          r.str("city"),
			TechnicianID:  r.str("technician_id"),
			DistanceKM:    r.float("distance_km"),
			DurationMin:   r.float("duration_min"),
			ServiceTier:   r.str("service_tier"),
			Equipment:     r.str("equipment"),
			FirstTimeFix:  r.boolean("first_time_fix"),
			Productive:    r.boolean("productive"),
		}
		h.Appointment, err = parseTime(r.str("appointment"))
		if err != nil {
			s.log.Warnf("history %s: %v, skipping row", h.DispatchID, err)
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// WriteAssignments writes the run's assignments, overwriting any previous
// output file in the directory.
func (s *CSVStore) WriteAssignments(ctx context.Context, runID string, assignments []model.Assignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(s.dir, AssignmentsFile))
	if err != nil {
		return fmt.Errorf("create assignments file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"run_id", "dispatch_id", "technician_id", "distance_km", "workload_ratio",
		"skill_match", "confidence", "success_probability", "final_score",
		"level", "reason", "warnings",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, a := range assignments {
		rec := []string{
			runID,
			a.DispatchID,
			a.TechnicianID,
			formatFloat(a.DistanceKM),
			formatFloat(a.WorkloadRatio),
			a.SkillMatch,
			formatFloat(a.Confidence),
			formatFloat(a.SuccessProb),
			formatFloat(a.FinalScore),
			a.Level,
			a.Reason,
			strings.Join(a.Warnings, "; "),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// record maps a CSV row by header name. Missing columns read as zero values.
type record struct {
	cols map[string]int
	row  []string
}

func (r record) str(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.row) {
		return ""
	}
	return strings.TrimSpace(r.row[i])
}

func (r record) float(name string) float64 {
	v, err := strconv.ParseFloat(r.str(name), 64)
	if err != nil {
		return 0
	}
	return v
}

func (r record) boolean(name string) bool {
	switch strings.ToLower(r.str(name)) {
	case "true", "t", "yes", "y", "1":
		return true
	}
	return false
}

func (s *CSVStore) read(ctx context.Context, name string) ([]record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	cols := make(map[string]int, len(all[0]))
	for i, h := range all[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	out := make([]record, 0, len(all)-1)
	for _, row := range all[1:] {
		out = append(out, record{cols: cols, row: row})
	}
	return out, nil
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", v)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldops/dispatchd/config"
	"github.com/fieldops/dispatchd/infra/store"
)

// writeBatchInputs seeds a CSV directory with two Miami dispatches, two
// technicians and a thin history file.
func writeBatchInputs(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		store.DispatchesFile: "dispatch_id,required_skill,city,latitude,longitude,appointment,priority,initial_technician\n" +
			"D1,Line repair,Miami,25.7617,-80.1918,2024-05-06 09:00:00,High,T-far\n" +
			"D2,Line repair,Miami,25.7617,-80.1918,2024-05-06 11:00:00,,\n",
		store.TechniciansFile: "technician_id,primary_skill,secondary_skills,city,latitude,longitude,capacity,assigned\n" +
			"T-near,Line repair,,Miami,25.7717,-80.1918,8,0\n" +
			"T-far,Line repair,,Miami,25.8117,-80.1918,8,0\n",
		store.AvailabilityFile: "technician_id,date,available\n" +
			"T-near,2024-05-06,true\nT-far,2024-05-06,true\n",
		store.HistoryFile: "dispatch_id,required_skill,city,technician_id,appointment,distance_km,duration_min,productive\n" +
			"H1,Line repair,Miami,T-near,2024-04-01 10:00:00,2.0,40,true\n" +
			"H2,Line repair,Miami,T-far,2024-04-02 10:00:00,6.0,90,false\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestServiceRunsBatchOverCSV(t *testing.T) {
	dir := t.TempDir()
	writeBatchInputs(t, dir)

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Store.CSVDir = dir
	cfg.Model.EnablePerformanceTracking = true
	require.NoError(t, cfg.Validate())

	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, store.AssignmentsFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3) // header + both dispatches

	// both dispatches find an exact-skill technician
	require.Contains(t, lines[1], "D1")
	require.Contains(t, lines[1], "level_1")
	require.Contains(t, lines[2], "D2")
	require.Contains(t, lines[2], "level_1")
}

func TestServiceRunsMLBatch(t *testing.T) {
	dir := t.TempDir()
	writeBatchInputs(t, dir)

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Store.CSVDir = dir
	cfg.Assignment.UseMLAssignment = true
	cfg.Assignment.MinSuccessThreshold = 0.1
	cfg.Model.LearnSkillCompat = true
	cfg.Model.LearnMultipliers = true
	require.NoError(t, cfg.Validate())

	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, store.AssignmentsFile))
	require.NoError(t, err)
	require.Contains(t, string(data), "ml_exhaustive")
}

func TestServiceSurvivesEmptyHistory(t *testing.T) {
	dir := t.TempDir()
	writeBatchInputs(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.HistoryFile),
		[]byte("dispatch_id,required_skill,city,technician_id,appointment,distance_km,duration_min,productive\n"), 0o644))

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Store.CSVDir = dir

	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	// with no history the engine still assigns via the rule table
	require.NoError(t, svc.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, store.AssignmentsFile))
	require.NoError(t, err)
	require.Contains(t, string(data), "T-near")
}

package predict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldops/dispatchd/core/history"
	"github.com/fieldops/dispatchd/core/logger"
	"github.com/fieldops/dispatchd/core/model"
	"github.com/fieldops/dispatchd/core/perf"
	"github.com/fieldops/dispatchd/core/skills"
)

func TestRuleTable(t *testing.T) {
	r := Rules{}
	cases := []struct {
		name string
		f    Features
		want float64
	}{
		{
			name: "all aligned",
			f:    Features{SkillTier: skills.MatchExact, DistanceKM: 5, WorkloadRatio: 0.3},
			want: 0.95,
		},
		{
			name: "exact far and loaded",
			f:    Features{SkillTier: skills.MatchExact, DistanceKM: 30, WorkloadRatio: 0.9},
			want: 0.92,
		},
		{
			name: "same category short trip",
			f:    Features{SkillTier: skills.MatchSameCategory, DistanceKM: 5, WorkloadRatio: 0.9},
			want: 0.91,
		},
		{
			name: "related light load",
			f:    Features{SkillTier: skills.MatchRelatedCategory, DistanceKM: 30, WorkloadRatio: 0.3},
			want: 0.87,
		},
		{
			name: "no match",
			f:    Features{SkillTier: skills.MatchNone, DistanceKM: 30, WorkloadRatio: 0.9},
			want: 0.60,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, r.Predict(tc.f), 1e-9)
		})
	}
}

func TestRulePriorityFactor(t *testing.T) {
	r := Rules{}
	f := Features{SkillTier: skills.MatchNone, DistanceKM: 30, WorkloadRatio: 0.9}

	f.Priority = model.PriorityCritical
	require.InDelta(t, 0.60*1.10, r.Predict(f), 1e-9)
	f.Priority = model.PriorityLow
	require.InDelta(t, 0.60*0.95, r.Predict(f), 1e-9)

	// critical priority never pushes past 1
	aligned := Features{SkillTier: skills.MatchExact, DistanceKM: 1, WorkloadRatio: 0.1, Priority: model.PriorityCritical}
	require.LessOrEqual(t, r.Predict(aligned), 1.0)
}

func TestRuleLearnedMultipliers(t *testing.T) {
	m := TierMultipliers{skills.MatchSameCategory: 0.5}
	r := Rules{Multipliers: m}
	f := Features{SkillTier: skills.MatchSameCategory, DistanceKM: 30, WorkloadRatio: 0.9}
	require.InDelta(t, 0.92*0.5, r.Predict(f), 1e-9)

	// exact tier is never scaled
	f.SkillTier = skills.MatchExact
	require.InDelta(t, 0.92, r.Predict(f), 1e-9)
}

func TestLearnMultipliers(t *testing.T) {
	rows := make([]history.Row, 0, 40)
	add := func(tier skills.MatchType, n int, productive int) {
		for i := 0; i < n; i++ {
			rows = append(rows, history.Row{SkillTier: tier, Productive: i < productive})
		}
	}
	add(skills.MatchExact, 20, 20)        // exact rate 1.0
	add(skills.MatchSameCategory, 10, 9)  // empirical 0.9
	add(skills.MatchRelatedCategory, 6, 3) // blend: 0.7*0.5 + 0.3*0.60
	add(skills.MatchNone, 2, 2)           // too thin, keeps prior

	m := LearnMultipliers(&history.Table{Rows: rows})
	require.InDelta(t, 0.9, m.Get(skills.MatchSameCategory), 1e-9)
	require.InDelta(t, 0.7*0.5+0.3*0.60, m.Get(skills.MatchRelatedCategory), 1e-9)
	require.InDelta(t, 0.40, m.Get(skills.MatchNone), 1e-9)
	require.InDelta(t, 1.0, m.Get(skills.MatchExact), 1e-9)
}

func TestLearnMultipliersClipped(t *testing.T) {
	rows := make([]history.Row, 0, 40)
	for i := 0; i < 20; i++ {
		rows = append(rows, history.Row{SkillTier: skills.MatchExact, Productive: i < 10})
	}
	for i := 0; i < 20; i++ {
		rows = append(rows, history.Row{SkillTier: skills.MatchNone, Productive: true})
	}
	m := LearnMultipliers(&history.Table{Rows: rows})
	// empirical ratio 1.0/0.5 = 2.0, clipped to ceiling
	require.InDelta(t, 1.0, m.Get(skills.MatchNone), 1e-9)
}

// trainingRows builds a separable history: short trips with good skill
// matches succeed, long trips with poor matches fail.
func trainingRows(n int) []history.Row {
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	rows := make([]history.Row, 0, n)
	for i := 0; i < n; i++ {
		good := i%2 == 0
		r := history.Row{
			TechnicianID:  "T1",
			DistanceKM:    35,
			SkillScore:    0.3,
			SkillTier:     skills.MatchNone,
			WorkloadRatio: 0.9,
			Hour:          base.Add(time.Duration(i) * time.Hour).Hour(),
			Weekday:       base.Weekday(),
			ServiceTier:   "Standard",
			Equipment:     "None",
			Productive:    false,
		}
		if good {
			r.DistanceKM = 4
			r.SkillScore = 1.0
			r.SkillTier = skills.MatchExact
			r.WorkloadRatio = 0.2
			r.Productive = true
		}
		rows = append(rows, r)
	}
	return rows
}

func TestTrainLogisticSeparable(t *testing.T) {
	l, err := TrainLogistic(trainingRows(600), logger.Nop{})
	require.NoError(t, err)

	good := Features{DistanceKM: 4, SkillScore: 1.0, WorkloadRatio: 0.2}
	bad := Features{DistanceKM: 35, SkillScore: 0.3, WorkloadRatio: 0.9}
	require.Greater(t, l.Predict(good), l.Predict(bad))
	require.Greater(t, l.Predict(good), 0.5)
	require.Less(t, l.Predict(bad), 0.5)
}

func TestTrainLogisticSingleClass(t *testing.T) {
	rows := trainingRows(100)
	for i := range rows {
		rows[i].Productive = true
	}
	_, err := TrainLogistic(rows, logger.Nop{})
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrainBoostedSeparable(t *testing.T) {
	if testing.Short() {
		t.Skip("grid search is slow")
	}
	b, err := TrainBoosted(trainingRows(400), logger.Nop{})
	require.NoError(t, err)

	good := Features{DistanceKM: 4, SkillScore: 1.0, SkillTier: skills.MatchExact,
		WorkloadRatio: 0.2, ServiceTier: "Standard", Equipment: "None"}
	bad := Features{DistanceKM: 35, SkillScore: 0.3, SkillTier: skills.MatchNone,
		WorkloadRatio: 0.9, ServiceTier: "Standard", Equipment: "None"}
	require.Greater(t, b.Predict(good), b.Predict(bad))
}

func TestTrainLadder(t *testing.T) {
	log := logger.Nop{}

	e := Train(nil, TrainOptions{}, log)
	require.Equal(t, "baseline", e.Name())
	require.InDelta(t, DefaultBaseline, e.Predict(Features{}), 1e-9)

	thin := &history.Table{Rows: trainingRows(100), Mode: history.ModeInsufficient}
	require.Equal(t, "rules", Train(thin, TrainOptions{}, log).Name())

	basic := &history.Table{Rows: trainingRows(600), Mode: history.ModeBasic}
	require.Equal(t, "logistic", Train(basic, TrainOptions{}, log).Name())

	blended := Train(basic, TrainOptions{RuleWeight: 0.3}, log)
	require.Equal(t, "blended(rules,logistic)", blended.Name())
}

func TestBlendedMix(t *testing.T) {
	b := Blended{Rules: Baseline{Prob: 1.0}, Model: Baseline{Prob: 0.5}, RuleWeight: 0.4}
	require.InDelta(t, 0.4*1.0+0.6*0.5, b.Predict(Features{}), 1e-9)
}

func TestValidateFlagsInvertedModel(t *testing.T) {
	require.Empty(t, Validate(Rules{}))

	// an estimator that rewards distance trips every probe it inverts
	inverted := estimatorFunc(func(f Features) float64 { return f.DistanceKM / 100 })
	warnings := Validate(inverted)
	require.NotEmpty(t, warnings)
}

func TestValidateFlagsConstantModel(t *testing.T) {
	// a model that never learned any input ties every probe; a tie is a
	// failed principle, not a pass
	warnings := Validate(Baseline{Prob: 0.6})
	require.Len(t, warnings, 3)
}

func TestAdjustedScalesBySuccessRate(t *testing.T) {
	tracker := perf.Build(&history.Table{Rows: []history.Row{
		{TechnicianID: "strong", Productive: true},
		{TechnicianID: "strong", Productive: true},
		{TechnicianID: "weak", Productive: false},
		{TechnicianID: "weak", Productive: false},
	}})
	a := Adjusted{Base: Baseline{Prob: 0.8}, Tracker: tracker}

	// rate 1.0 vs baseline 0.75 boosts, rate 0 keeps 70%
	require.InDelta(t, 0.8*(0.7+0.3*1.0/0.75), a.Predict(Features{TechnicianID: "strong"}), 1e-9)
	require.InDelta(t, 0.8*0.7, a.Predict(Features{TechnicianID: "weak"}), 1e-9)
	// unknown technician passes through
	require.InDelta(t, 0.8, a.Predict(Features{TechnicianID: "new"}), 1e-9)
}

type estimatorFunc func(Features) float64

func (fn estimatorFunc) Predict(f Features) float64 { return fn(f) }
func (estimatorFunc) Name() string                  { return "func" }

func TestAUC(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.2, 0.1}
	outcomes := []bool{true, true, false, false}
	require.InDelta(t, 1.0, AUC(scores, outcomes), 1e-9)

	require.InDelta(t, 0.5, AUC([]float64{0.3, 0.4}, []bool{true, true}), 1e-9)
	require.InDelta(t, 0.5, AUC(nil, nil), 1e-9)

	inverted := AUC([]float64{0.1, 0.2, 0.8, 0.9}, []bool{true, true, false, false})
	require.InDelta(t, 0.0, inverted, 1e-9)
}

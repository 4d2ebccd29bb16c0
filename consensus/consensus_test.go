package consensus

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartguard/ml"
	"heartguard/patient"
	"heartguard/registry"
)

func constant(label int) ml.Classifier {
	return ml.ClassifierFunc(func([]float64) (int, error) { return label, nil })
}

func models(labels ...int) []registry.Model {
	out := make([]registry.Model, len(labels))
	for i, l := range labels {
		out[i] = registry.Model{Name: registry.Entries[i].Name, Classifier: constant(l)}
	}
	return out
}

func votes(labels ...int) []Vote {
	out := make([]Vote, len(labels))
	for i, l := range labels {
		out[i] = Vote{Model: string(rune('A' + i)), Label: l}
	}
	return out
}

func TestScore(t *testing.T) {
	assert.Equal(t, 1.0, Score(votes(1, 1, 1, 1)))
	assert.Equal(t, 0.0, Score(votes(0, 0, 0)))
	assert.InDelta(t, 2.0/3.0, Score(votes(1, 1, 0)), 1e-12)

	for _, vs := range [][]Vote{votes(1), votes(0), votes(1, 0), votes(0, 0, 1, 1), votes(1, 1, 1, 0)} {
		s := Score(vs)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestScorePanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() { Score(nil) })
}

func TestDecideTieIsStable(t *testing.T) {
	assert.Equal(t, Stable, Decide(Score(votes(1, 1, 0, 0))))
	assert.Equal(t, ElevatedRisk, Decide(Score(votes(1, 1, 0))))
	assert.Equal(t, Stable, Decide(0))
	assert.Equal(t, ElevatedRisk, Decide(1))
}

func TestPredictSingle(t *testing.T) {
	got, err := PredictSingle(models(1, 0, 1), patient.Default().Values())
	require.NoError(t, err)
	assert.Equal(t, []Vote{
		{Model: "Decision Tree", Label: 1},
		{Model: "Logistic Regression", Label: 0},
		{Model: "Random Forest", Label: 1},
	}, got)

	got, err = PredictSingle(nil, patient.Default().Values())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPredictSinglePropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	ms := []registry.Model{{Name: "Broken", Classifier: ml.ClassifierFunc(func([]float64) (int, error) { return 0, boom })}}
	_, err := PredictSingle(ms, patient.Default().Values())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "Broken")
}

func TestAssessTwoOfThree(t *testing.T) {
	e, err := NewEngine(registry.NewSet(models(1, 1, 0), nil), 0, nil)
	require.NoError(t, err)

	a, err := e.Assess(patient.Default())
	require.NoError(t, err)
	assert.InDelta(t, 0.667, a.Score, 0.001)
	assert.Equal(t, ElevatedRisk, a.Verdict)
	assert.Equal(t, 67, a.Agreement)
	assert.Len(t, a.Votes, 3)
}

func TestAssessAllHealthyIsStable(t *testing.T) {
	e, err := NewEngine(registry.NewSet(models(0, 0, 0, 0), nil), 0, nil)
	require.NoError(t, err)

	a, err := e.Assess(patient.Default())
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Score)
	assert.Equal(t, Stable, a.Verdict)
}

func TestAssessWithoutModels(t *testing.T) {
	diags := []registry.Diagnostic{{Name: "SVM", Message: "File not found at: /x/SVM.json"}}
	e, err := NewEngine(registry.NewSet(nil, diags), 8, nil)
	require.NoError(t, err)

	_, err = e.Assess(patient.Default())
	require.ErrorIs(t, err, ErrNoModels)
	var nm *NoModelsError
	require.True(t, errors.As(err, &nm))
	assert.Equal(t, diags, nm.Diagnostics)
}

func TestAssessIsMemoised(t *testing.T) {
	var calls atomic.Int32
	counting := ml.ClassifierFunc(func([]float64) (int, error) {
		calls.Add(1)
		return 1, nil
	})
	e, err := NewEngine(registry.NewSet([]registry.Model{{Name: "A", Classifier: counting}}, nil), 4, nil)
	require.NoError(t, err)

	first, err := e.Assess(patient.Default())
	require.NoError(t, err)
	first.Votes[0].Label = 0

	second, err := e.Assess(patient.Default())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, second.Votes[0].Label, "cached assessment must not be shared")

	other := patient.Default()
	other.Age = 70
	_, err = e.Assess(other)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

const batchCSV = "Age,Sex,ChestPainType,RestingBP,Cholesterol,FastingBS,RestingECG,MaxHR,ExerciseAngina,Oldpeak,ST_Slope\n" +
	"40,1,1,140,289,0,0,172,0,0.0,0\n" +
	"65,1,2,160,300,1,1,110,1,2.5,1\n" +
	"30,0,0,120,180,0,0,180,0,0.0,0\n"

// ageModel labels a row as risk when Age (column 0) is above limit.
func ageModel(limit float64) ml.Classifier {
	return ml.ClassifierFunc(func(x []float64) (int, error) {
		if x[0] > limit {
			return 1, nil
		}
		return 0, nil
	})
}

func TestPredictBatch(t *testing.T) {
	table, err := patient.ReadTable(strings.NewReader(batchCSV))
	require.NoError(t, err)
	ms := []registry.Model{
		{Name: "Decision Tree", Classifier: ageModel(50)},
		{Name: "Logistic Regression", Classifier: ageModel(35)},
	}

	out, err := PredictBatch(context.Background(), ms, table)
	require.NoError(t, err)

	assert.Equal(t, append(append([]string{}, table.Header...), "Decision Tree", "Logistic Regression"), out.Header)
	assert.Len(t, out.Rows, 3)
	assert.Len(t, table.Header, 11, "input table is not modified")

	rows, err := table.FeatureRows()
	require.NoError(t, err)
	for _, m := range ms {
		col, ok := out.Column(m.Name)
		require.True(t, ok)
		for r, row := range rows {
			votes, err := PredictSingle([]registry.Model{m}, row)
			require.NoError(t, err)
			assert.Contains(t, []string{TextRisk, TextHealthy}, col[r])
			assert.Equal(t, LabelText(votes[0].Label), col[r], "%s row %d", m.Name, r)
		}
	}
	dt, _ := out.Column("Decision Tree")
	assert.Equal(t, []string{"Healthy", "Risk", "Healthy"}, dt)
}

func TestPredictBatchHasNoConsensusColumn(t *testing.T) {
	table, err := patient.ReadTable(strings.NewReader(batchCSV))
	require.NoError(t, err)
	out, err := PredictBatch(context.Background(), models(1, 1, 0, 0), table)
	require.NoError(t, err)
	assert.Len(t, out.Header, 11+4)
}

func TestPredictBatchSchemaMismatch(t *testing.T) {
	table, err := patient.ReadTable(strings.NewReader("Age,Sex\n40,1\n"))
	require.NoError(t, err)
	_, err = PredictBatch(context.Background(), models(1), table)
	assert.ErrorIs(t, err, patient.ErrSchema)
}

func TestPredictBatchModelFailure(t *testing.T) {
	table, err := patient.ReadTable(strings.NewReader(batchCSV))
	require.NoError(t, err)
	boom := errors.New("boom")
	ms := []registry.Model{
		{Name: "ok", Classifier: constant(0)},
		{Name: "bad", Classifier: ml.ClassifierFunc(func([]float64) (int, error) { return 0, boom })},
	}
	_, err = PredictBatch(context.Background(), ms, table)
	assert.ErrorIs(t, err, boom)
}

func TestEngineBatchWithoutModels(t *testing.T) {
	table, err := patient.ReadTable(strings.NewReader(batchCSV))
	require.NoError(t, err)
	e, err := NewEngine(registry.NewSet(nil, nil), 0, nil)
	require.NoError(t, err)

	out, err := e.Batch(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, table.Header, out.Header)
}

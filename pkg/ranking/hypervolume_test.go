package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/record"
)

func TestHypervolume_1DSinglePoint(t *testing.T) {
	hv := Hypervolume([][]float64{{0.3}}, []float64{1.0})
	assert.InDelta(t, 0.7, hv, 1e-8)
}

func TestHypervolume_1DMultiplePoints(t *testing.T) {
	hv := Hypervolume([][]float64{{0.5}, {0.3}, {0.2}}, []float64{1.0})
	assert.InDelta(t, 0.8, hv, 1e-8)
}

func TestHypervolume_1DNoPoints(t *testing.T) {
	hv := Hypervolume(nil, []float64{1.0})
	assert.Equal(t, 0.0, hv)
}

func TestHypervolume_2DSinglePoint(t *testing.T) {
	hv := Hypervolume([][]float64{{0.3, 0.5}}, []float64{1.0, 1.0})
	assert.InDelta(t, 0.35, hv, 1e-8)
}

func TestHypervolume_2DMultiplePoints(t *testing.T) {
	ref := []float64{1.0, 1.0}
	pts := [][]float64{{0.3, 0.5}, {0.6, 0.2}}
	assert.InDelta(t, 0.47, Hypervolume(pts, ref), 1e-8)

	// A dominated point contributes nothing extra.
	pts = append(pts, []float64{0.8, 0.7})
	assert.InDelta(t, 0.47, Hypervolume(pts, ref), 1e-8)

	// Points along the Pareto front similarly don't change the volume.
	pts = append(pts, []float64{0.3, 0.8}, []float64{0.9, 0.2})
	assert.InDelta(t, 0.47, Hypervolume(pts, ref), 1e-8)
}

func TestHypervolume_3DSinglePoint(t *testing.T) {
	hv := Hypervolume([][]float64{{0.5, 0.5, 0.5}}, []float64{1.0, 1.0, 1.0})
	assert.InDelta(t, 0.125, hv, 1e-8)
}

func TestHypervolume_PanicsOnEmptyReference(t *testing.T) {
	assert.Panics(t, func() {
		Hypervolume([][]float64{{0.5, 0.5}}, nil)
	})
}

// TestBestValue_MultiObjectiveUsesHypervolume confirms a multi-objective
// study is no longer silently excluded: a study whose trials dominate a
// strictly larger region of objective space scores better (more negative).
func TestBestValue_MultiObjectiveUsesHypervolume(t *testing.T) {
	wideFront := multiObjectiveStudy(t, []float64{0.1, 0.9}, []float64{0.9, 0.1})
	narrowFront := multiObjectiveStudy(t, []float64{0.4, 0.6}, []float64{0.6, 0.4})

	wide, ok := BestValue(wideFront)
	require.True(t, ok)
	narrow, ok := BestValue(narrowFront)
	require.True(t, ok)

	assert.Less(t, wide, narrow)
}

func multiObjectiveStudy(t *testing.T, points ...[]float64) record.StudyRecord {
	t.Helper()
	trials := make([]record.TrialRecord, len(points))
	for i, p := range points {
		trials[i] = record.TrialRecord{
			Evaluations: []record.EvaluationRecord{
				{Values: domain.NewValues(p...), StartStep: 0, EndStep: 1},
			},
		}
	}
	return record.StudyRecord{
		StartTime: time.Unix(0, 0),
		EndTime:   time.Unix(1, 0),
		Trials:    trials,
	}
}

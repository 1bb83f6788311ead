package motion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signtalk/internal/landmark"
)

func TestNewTracker(t *testing.T) {
	t.Parallel()

	t.Run("sorts tracked ids", func(t *testing.T) {
		tr, err := NewTracker(map[int]float64{8: 0.7, 0: 0.3})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 8}, tr.IDs())
		assert.Equal(t, 10, tr.RowDim())
	})

	t.Run("rejects invalid weights and ids", func(t *testing.T) {
		_, err := NewTracker(map[int]float64{0: 0})
		assert.Error(t, err)

		_, err = NewTracker(map[int]float64{0: -1})
		assert.Error(t, err)

		_, err = NewTracker(map[int]float64{21: 1})
		assert.Error(t, err)

		_, err = NewTracker(nil)
		assert.Error(t, err)
	})
}

func TestTracker_Measure(t *testing.T) {
	t.Parallel()

	tr, err := NewTracker(DefaultWeights())
	require.NoError(t, err)

	frame := landmark.Frame{Points: []landmark.Point{
		{ID: landmark.Wrist, X: 0.5, Y: 0.5},
		{ID: landmark.ThumbTip, X: 0.1, Y: 0.1},
		{ID: landmark.IndexTip, X: 0.4, Y: 0.2},
	}}
	prev := map[int]Position{}

	t.Run("first frame has zero displacement", func(t *testing.T) {
		features, speed := tr.Measure(frame, prev)
		assert.Equal(t, 0.0, speed)
		assert.Len(t, features, 2)
		assert.Equal(t, Position{X: 0.5, Y: 0.5}, prev[landmark.Wrist])
		assert.NotContains(t, prev, landmark.ThumbTip)
	})

	t.Run("weighted L1 speed", func(t *testing.T) {
		next := landmark.Frame{Points: []landmark.Point{
			{ID: landmark.Wrist, X: 0.6, Y: 0.4},
			{ID: landmark.IndexTip, X: 0.4, Y: 0.4},
		}}
		features, speed := tr.Measure(next, prev)

		// 0.3*(0.1+0.1) + 0.7*(0+0.2)
		assert.InDelta(t, 0.2, speed, 1e-9)

		want := []Feature{
			{ID: landmark.Wrist, X: 0.6, Y: 0.4, DX: 0.1, DY: -0.1},
			{ID: landmark.IndexTip, X: 0.4, Y: 0.4, DX: 0, DY: 0.2},
		}
		if diff := cmp.Diff(want, features, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("features mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing tracked id leaves cache untouched", func(t *testing.T) {
		onlyWrist := landmark.Frame{Points: []landmark.Point{
			{ID: landmark.Wrist, X: 0.6, Y: 0.4},
		}}
		features, speed := tr.Measure(onlyWrist, prev)
		assert.Len(t, features, 1)
		assert.Equal(t, 0.0, speed)
		assert.Equal(t, Position{X: 0.4, Y: 0.4}, prev[landmark.IndexTip])
	})

	t.Run("speed is never negative", func(t *testing.T) {
		cache := map[int]Position{}
		f := landmark.FistFrame()
		for i := 0; i < 10; i++ {
			dx := 0.02
			if i%2 == 1 {
				dx = -0.03
			}
			f = f.Translate(dx, -dx)
			_, speed := tr.Measure(f, cache)
			assert.GreaterOrEqual(t, speed, 0.0)
		}
	})
}

func TestTracker_Vector(t *testing.T) {
	t.Parallel()

	tr, err := NewTracker(DefaultWeights())
	require.NoError(t, err)

	row := tr.Vector([]Feature{{ID: landmark.IndexTip, X: 0.4, Y: 0.2, DX: 0.1, DY: 0}}, 0.07)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0.4, 0.2, 0.1, 0, 0.07}, row)
}

func spikes(n float64, length int, at ...int) []float64 {
	values := make([]float64, length)
	for _, i := range at {
		values[i] = n
	}
	return values
}

func TestDetectPeaks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		want   Peaks
	}{
		{
			name:   "empty",
			values: nil,
			want:   Peaks{Indices: []int{}},
		},
		{
			name:   "all zero",
			values: make([]float64, 16),
			want:   Peaks{Indices: []int{}},
		},
		{
			name:   "all constant",
			values: []float64{0.4, 0.4, 0.4, 0.4},
			want:   Peaks{Indices: []int{}},
		},
		{
			name:   "single isolated spike",
			values: spikes(10, 8, 4),
			want:   Peaks{Count: 1, Indices: []int{4}},
		},
		{
			name:   "two separated spikes",
			values: spikes(5, 16, 2, 7),
			want:   Peaks{Count: 2, Indices: []int{2, 7}},
		},
		{
			name:   "adjacent run merges to first index",
			values: spikes(5, 16, 2, 3, 9),
			want:   Peaks{Count: 2, Indices: []int{2, 9}},
		},
		{
			name:   "peaks closer than min gap",
			values: spikes(5, 16, 2, 4),
			want:   Peaks{Count: 1, Indices: []int{2}},
		},
		{
			name:   "gap above max gap restarts the group",
			values: spikes(5, 16, 1, 4, 14),
			want:   Peaks{Count: 1, Indices: []int{14}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DetectPeaks(tt.values, DefaultPeakParams())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DetectPeaks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectPeaks_Threshold(t *testing.T) {
	t.Parallel()

	values := spikes(5, 16, 2, 7)
	values[12] = 1.5

	loose := DetectPeaks(values, PeakParams{ThreshStd: 0.25, MinGap: 3, MaxGap: 8})
	strict := DetectPeaks(values, DefaultPeakParams())

	assert.Equal(t, 3, loose.Count)
	assert.Equal(t, 2, strict.Count)
}

package camera

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depth.camera/internal/native"
)

func newLiveSession(t *testing.T) (*Session, *native.MockLibrary) {
	t.Helper()
	lib := native.NewMockLibrary()
	s := NewSession(lib)
	require.NoError(t, s.Init(native.Resolution640x400, 25))
	t.Cleanup(s.Release)
	return s, lib
}

func fill16(n int, v uint16) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSession_GetBeforeEnableIsAbsent(t *testing.T) {
	s, lib := newLiveSession(t)
	// Data is waiting on the native side, but nothing was enabled.
	lib.PublishDepth(4, 4, fill16(16, 2000))

	_, ok := s.Depth()
	assert.False(t, ok, "depth")
	_, ok = s.Disparity()
	assert.False(t, ok, "disparity")
	_, ok = s.Rectified()
	assert.False(t, ok, "rectified")
	_, ok = s.Points()
	assert.False(t, ok, "points")
	_, ok = s.IMU(DefaultIMUSamples)
	assert.False(t, ok, "imu")
	_, ok = s.Detections(DefaultMaxBoxes)
	assert.False(t, ok, "detections")
	_, ok = s.DetectorImage()
	assert.False(t, ok, "detector image")
	_, ok = s.Image()
	assert.False(t, ok, "image with no frame yet")
}

func TestSession_GetBeforeInitIsAbsent(t *testing.T) {
	s := NewSession(native.NewMockLibrary())
	_, ok := s.Image()
	assert.False(t, ok)
	_, ok = s.Depth()
	assert.False(t, ok)
	assert.ErrorIs(t, s.EnableDepth(DepthDefault), ErrNotInitialized)
}

func TestSession_DepthScenario(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnableDepth(DepthHighAccuracy))
	lib.PublishDepth(4, 4, fill16(16, 2000))

	f, ok := s.Depth()
	require.True(t, ok)
	if diff := cmp.Diff([]int{4, 4}, f.Shape); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	for i, v := range f.Data {
		if v != 2000 {
			t.Fatalf("depth[%d] = %d, want 2000", i, v)
		}
	}
	assert.Equal(t, uint16(2000), f.At(3, 3))

	_, ok = s.Depth()
	assert.False(t, ok, "no new frame since last poll")
}

func TestSession_DetectionsScenario(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnableDetector())
	lib.PublishDetections([]native.DetectionBox{
		{X: 10, Y: 10, W: 5, H: 5, ClassID: 1, ScoreMilli: 900},
		{X: 0, Y: 0, W: 1, H: 1, ClassID: 99, ScoreMilli: 500},
	}, 0, 0, 0, nil)

	got, ok := s.Detections(DefaultMaxBoxes)
	require.True(t, ok)
	want := []Detection{
		{X: 10, Y: 10, W: 5, H: 5, ClassID: 1, ClassName: "PERSON", Score: 0.9},
		{X: 0, Y: 0, W: 1, H: 1, ClassID: 99, ClassName: "UNKNOWN", Score: 0.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("detections mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_ImageRoundTrip(t *testing.T) {
	s, lib := newLiveSession(t)
	const w, h = 8, 3
	pattern := make([]uint8, w*h)
	for i := range pattern {
		pattern[i] = uint8(i*37 + 11)
	}
	lib.PublishImage(w, h, 1, pattern)

	f, ok := s.Image()
	require.True(t, ok)
	if diff := cmp.Diff([]int{h, w}, f.Shape); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, pattern, f.Data)

	gray := Gray(f)
	assert.Equal(t, pattern, gray.Pix)
}

func TestSession_ImageViewAliasesBuffer(t *testing.T) {
	s, lib := newLiveSession(t)
	lib.PublishImage(2, 2, 1, []uint8{1, 2, 3, 4})
	first, ok := s.Image()
	require.True(t, ok)

	lib.PublishImage(2, 2, 1, []uint8{5, 6, 7, 8})
	second, ok := s.Image()
	require.True(t, ok)

	assert.Same(t, &first.Data[0], &second.Data[0])
	assert.Equal(t, []uint8{5, 6, 7, 8}, first.Data, "raw image views are overwritten by the next poll")
}

func TestSession_CopyOutChannelsOwnTheirData(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnableDepth(DepthDefault))
	lib.PublishDepth(2, 2, []uint16{1, 2, 3, 4})
	first, ok := s.Depth()
	require.True(t, ok)

	lib.PublishDepth(2, 2, []uint16{5, 6, 7, 8})
	second, ok := s.Depth()
	require.True(t, ok)

	assert.Equal(t, []uint16{1, 2, 3, 4}, first.Data)
	assert.Equal(t, []uint16{5, 6, 7, 8}, second.Data)
	assert.NotSame(t, &first.Data[0], &second.Data[0])
}

func TestSession_SameShapeReusesBuffer(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnableDepth(DepthDefault))
	require.NoError(t, s.EnableDisparity(DisparityBoth))
	require.NoError(t, s.EnableRectify())
	require.NoError(t, s.EnablePoints())
	require.NoError(t, s.EnableIMU())
	require.NoError(t, s.EnableDetector())

	for i := 0; i < 3; i++ {
		lib.PublishImage(4, 2, 1, make([]uint8, 8))
		lib.PublishDepth(4, 2, make([]uint16, 8))
		lib.PublishDisparity(4, 2, make([]float32, 8))
		lib.PublishRectified(4, 2, 1, make([]uint8, 8))
		lib.PublishPoints(2, 1, make([]float32, 6))
		lib.PublishIMU([native.IMUFields]float64{float64(i)})
		lib.PublishDetections([]native.DetectionBox{{ClassID: 1}}, 2, 2, 1, make([]uint8, 4))

		_, ok := s.Image()
		require.True(t, ok)
		_, ok = s.Depth()
		require.True(t, ok)
		_, ok = s.Disparity()
		require.True(t, ok)
		_, ok = s.Rectified()
		require.True(t, ok)
		_, ok = s.Points()
		require.True(t, ok)
		_, ok = s.IMU(DefaultIMUSamples)
		require.True(t, ok)
		_, ok = s.Detections(DefaultMaxBoxes)
		require.True(t, ok)
		_, ok = s.DetectorImage()
		require.True(t, ok)
	}

	for ch, st := range s.Stats() {
		assert.Equal(t, uint64(1), st.Allocs, "channel %s reallocated", ch)
		assert.Equal(t, uint64(3), st.Frames, "channel %s frames", ch)
	}
}

func TestSession_ShrinkLeavesNoResidualData(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnableDepth(DepthDefault))

	lib.PublishDepth(4, 4, fill16(16, 9999))
	big, ok := s.Depth()
	require.True(t, ok)
	require.Equal(t, 16, big.Len())

	lib.PublishDepth(2, 2, fill16(4, 1))
	small, ok := s.Depth()
	require.True(t, ok)
	if diff := cmp.Diff([]int{2, 2}, small.Shape); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []uint16{1, 1, 1, 1}, small.Data)
	assert.Equal(t, 4, small.Len())
	assert.Equal(t, uint64(2), s.depth.allocs())
}

func TestSession_StaleSizeIsAbsent(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnableDisparity(DisparityDefault))
	lib.PublishDisparity(2, 2, []float32{1, 2, 3, 4})
	lib.SetStaleSize(native.ChannelDisparity, true)

	_, ok := s.Disparity()
	assert.False(t, ok)

	lib.SetStaleSize(native.ChannelDisparity, false)
	f, ok := s.Disparity()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3, 4}, f.Data)
}

func TestSession_NativePanicIsAbsent(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnableDepth(DepthDefault))
	lib.PublishDepth(2, 2, fill16(4, 5))
	lib.SetPanicOnFill(native.ChannelDepth, true)

	assert.NotPanics(t, func() {
		_, ok := s.Depth()
		assert.False(t, ok)
	})
	assert.Equal(t, uint64(1), s.Stats()[ChannelDepth].Faults)

	lib.SetPanicOnFill(native.ChannelDepth, false)
	_, ok := s.Depth()
	assert.True(t, ok, "channel recovers once the fault clears")
}

func TestSession_PointsAndIMUShapes(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnablePoints())
	require.NoError(t, s.EnableIMU())

	lib.PublishPoints(2, 1, []float32{0, 0, 1, 1, 1, 2})
	pts, ok := s.Points()
	require.True(t, ok)
	if diff := cmp.Diff([]int{2, 3}, pts.Shape); diff != "" {
		t.Errorf("points shape (-want +got):\n%s", diff)
	}
	assert.Equal(t, []Point{{0, 0, 1}, {1, 1, 2}}, Points(pts))

	for i := 0; i < 5; i++ {
		lib.PublishIMU([native.IMUFields]float64{float64(i), 0.1, 0.2, 9.8, 0.01, 0.02, 0.03})
	}
	assert.Equal(t, 5, s.IMUPending())
	imu, ok := s.IMU(3)
	require.True(t, ok)
	if diff := cmp.Diff([]int{3, native.IMUFields}, imu.Shape); diff != "" {
		t.Errorf("imu shape (-want +got):\n%s", diff)
	}
	samples := IMUSamples(imu)
	assert.Equal(t, 2.0, samples[0].Timestamp)
	assert.Equal(t, 4.0, samples[2].Timestamp)
	assert.Equal(t, [3]float64{0.1, 0.2, 9.8}, samples[2].Accel)

	_, ok = s.IMU(3)
	assert.False(t, ok, "ring drained by the previous read")
	_, ok = s.IMU(0)
	assert.False(t, ok)
}

func TestSession_RectifiedIsHWC(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnableRectify())
	lib.PublishRectified(2, 1, 3, []uint8{1, 2, 3, 4, 5, 6})

	f, ok := s.Rectified()
	require.True(t, ok)
	if diff := cmp.Diff([]int{1, 2, 3}, f.Shape); diff != "" {
		t.Errorf("shape (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint8(4), f.At(0, 1))
}

func TestSession_DetectorImageRepeats(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnableDetector())
	assert.True(t, s.Enabled(ChannelDetectorImage))
	lib.PublishDetections(nil, 2, 2, 1, []uint8{1, 2, 3, 4})

	for i := 0; i < 2; i++ {
		f, ok := s.DetectorImage()
		require.True(t, ok)
		assert.Equal(t, []uint8{1, 2, 3, 4}, f.Data)
	}
}

func TestSession_InitFailure(t *testing.T) {
	lib := native.NewMockLibrary()
	lib.InitStatus = native.StatusFailed
	s := NewSession(lib)

	err := s.Init(native.Resolution1280x800, 25)
	var initErr *InitError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, native.StatusFailed, initErr.Status)
	assert.False(t, s.IsInitialized())
	assert.Equal(t, StateUninitialized, s.State())
	assert.ErrorIs(t, s.EnableIMU(), ErrNotInitialized)

	// Release after a failed init is a no-op.
	s.Release()
	assert.Equal(t, 0, lib.CallCount("release"))
}

func TestSession_InitTwice(t *testing.T) {
	s, _ := newLiveSession(t)
	assert.ErrorIs(t, s.Init(native.Resolution640x400, 25), ErrAlreadyInitialized)
}

func TestSession_ReleaseIsIdempotent(t *testing.T) {
	lib := native.NewMockLibrary()
	s := NewSession(lib)
	require.NoError(t, s.Init(native.Resolution640x400, 25))

	s.Release()
	s.Release()
	assert.False(t, s.IsInitialized())
	assert.Equal(t, StateReleased, s.State())
	assert.Equal(t, 1, lib.CallCount("release"))

	assert.ErrorIs(t, s.Init(native.Resolution640x400, 25), ErrReleased)
	assert.ErrorIs(t, s.EnableDepth(DepthDefault), ErrReleased)
	_, ok := s.Image()
	assert.False(t, ok)
}

func TestSession_ReleaseNeverInitialized(t *testing.T) {
	s := NewSession(native.NewMockLibrary())
	assert.NotPanics(t, s.Release)
	assert.False(t, s.IsInitialized())
}

func TestSession_EnableFailureLeavesOthersUsable(t *testing.T) {
	s, lib := newLiveSession(t)
	lib.EnableStatus[native.ChannelPoints] = native.StatusFailed

	err := s.EnablePoints()
	var enableErr *EnableError
	require.True(t, errors.As(err, &enableErr))
	assert.Equal(t, ChannelPoints, enableErr.Channel)
	assert.Equal(t, native.StatusFailed, enableErr.Status)
	assert.False(t, s.Enabled(ChannelPoints))

	require.NoError(t, s.EnableDepth(DepthDefault))
	lib.PublishDepth(1, 1, []uint16{42})
	f, ok := s.Depth()
	require.True(t, ok)
	assert.Equal(t, []uint16{42}, f.Data)
	assert.True(t, s.IsInitialized())
}

func TestSession_ConcurrentPolls(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnableDepth(DepthDefault))

	var producer, pollers sync.WaitGroup
	stop := make(chan struct{})
	producer.Add(1)
	go func() {
		defer producer.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			size := 2 + i%3
			lib.PublishDepth(size, size, fill16(size*size, uint16(size)))
			lib.PublishImage(size, size, 1, make([]uint8, size*size))
		}
	}()

	for g := 0; g < 4; g++ {
		pollers.Add(1)
		go func() {
			defer pollers.Done()
			for i := 0; i < 200; i++ {
				if f, ok := s.Depth(); ok {
					side := f.Shape[0]
					for _, v := range f.Data {
						if int(v) != side {
							t.Errorf("depth value %d in %dx%d frame", v, side, side)
							return
						}
					}
				}
				s.Image()
				s.Stats()
			}
		}()
	}

	pollers.Wait()
	close(stop)
	producer.Wait()
}

func TestSession_ModuleInfoAndCallbacks(t *testing.T) {
	s, lib := newLiveSession(t)
	lib.SetModuleInfo("ID: 123, FW: 1.2")
	assert.Equal(t, "ID: 123, FW: 1.2", s.ModuleInfo())

	lib.PublishImage(1, 1, 1, []uint8{0})
	lib.PublishImage(1, 1, 1, []uint8{0})
	assert.Equal(t, 2, s.CallbackCount())

	s.Release()
	assert.Equal(t, "Camera not initialized", s.ModuleInfo())
	assert.Equal(t, 0, s.CallbackCount())
}

// moduleInfoCounter counts native module summary queries.
type moduleInfoCounter struct {
	*native.MockLibrary
	queries atomic.Int32
}

func (m *moduleInfoCounter) ModuleInfo() string {
	m.queries.Add(1)
	return m.MockLibrary.ModuleInfo()
}

func TestSession_ModuleInfoNeedsLiveSession(t *testing.T) {
	lib := &moduleInfoCounter{MockLibrary: native.NewMockLibrary()}
	s := NewSession(lib)

	assert.Equal(t, native.NotInitializedInfo, s.ModuleInfo())
	assert.Zero(t, lib.queries.Load(), "not queried before init")

	require.NoError(t, s.Init(native.Resolution640x400, 25))
	s.ModuleInfo()
	assert.EqualValues(t, 1, lib.queries.Load())

	s.Release()
	assert.Equal(t, native.NotInitializedInfo, s.ModuleInfo())
	assert.EqualValues(t, 1, lib.queries.Load(), "not queried after release")
}

func TestSession_EnableDetectorSetsBothChannels(t *testing.T) {
	s, _ := newLiveSession(t)
	require.NoError(t, s.EnableDetector())
	assert.True(t, s.Enabled(ChannelDetections))
	assert.True(t, s.Enabled(ChannelDetectorImage))
}

func TestSession_EnableDetectorRacingRelease(t *testing.T) {
	for i := 0; i < 200; i++ {
		s := NewSession(native.NewMockLibrary())
		require.NoError(t, s.Init(native.Resolution640x400, 25))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.EnableDetector()
		}()
		go func() {
			defer wg.Done()
			s.Release()
		}()
		wg.Wait()

		require.Equal(t, StateReleased, s.State())
		require.False(t, s.Enabled(ChannelDetections), "iteration %d", i)
		require.False(t, s.Enabled(ChannelDetectorImage), "iteration %d", i)
	}
}

func TestSession_Shape(t *testing.T) {
	s, lib := newLiveSession(t)
	require.NoError(t, s.EnableDepth(DepthDefault))
	lib.PublishDepth(6, 4, make([]uint16, 24))
	assert.Equal(t, []int{4, 6}, s.Shape(ChannelDepth))
	assert.Equal(t, []int{0, 0}, s.Shape(ChannelDisparity))
}

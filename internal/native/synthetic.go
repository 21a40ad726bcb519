package native

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SyntheticLibrary behaves like a connected camera without hardware. Init
// starts a producer that publishes frames into the embedded MockLibrary at the
// requested rate, the way the wrapper's capture callbacks fill its slots.
type SyntheticLibrary struct {
	*MockLibrary

	// IMURate is the simulated IMU sample rate in Hz.
	IMURate float64

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	frameNo uint64
	startNs int64
	rng     *rand.Rand
}

const syntheticCalibration = `{
  "baseline": 0.12,
  "left":  {"w": 640, "h": 400, "fx": 392.5, "fy": 392.5, "cx": 320.0, "cy": 200.0,
            "k1": -0.01, "k2": 0.002, "t1": 0.0, "t2": 0.0,
            "P": [392.5, 0, 320, 0, 0, 392.5, 200, 0, 0, 0, 1, 0]},
  "right": {"w": 640, "h": 400, "fx": 392.5, "fy": 392.5, "cx": 320.0, "cy": 200.0,
            "k1": -0.01, "k2": 0.002, "t1": 0.0, "t2": 0.0,
            "P": [392.5, 0, 320, -47.1, 0, 392.5, 200, 0, 0, 0, 1, 0]}
}`

const syntheticDeviceInfo = `{
  "id": "SYNTHETIC-0001",
  "designer": "synthetic",
  "firmware": "0.0.0",
  "hardware": "sim",
  "lens": "2.1mm",
  "imu": "sim-imu",
  "viewing_angle": "120",
  "baseline": "120mm",
  "baseline_m": 0.12,
  "camera_channel": 2
}`

// NewSyntheticLibrary returns a library that synthesises frames once
// initialised.
func NewSyntheticLibrary() *SyntheticLibrary {
	m := NewMockLibrary()
	m.SetCalibration(syntheticCalibration)
	m.SetDeviceInfo(syntheticDeviceInfo)
	m.SetModuleInfo("ID: SYNTHETIC-0001, FW: 0.0.0")
	return &SyntheticLibrary{
		MockLibrary: m,
		IMURate:     1000,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func resolutionSize(resolution int) (int, int) {
	if resolution == Resolution1280x800 {
		return 1280, 800
	}
	return 640, 400
}

func (s *SyntheticLibrary) Init(resolution, fps int) int {
	status := s.MockLibrary.Init(resolution, fps)
	if status != StatusOK {
		return status
	}
	if fps <= 0 {
		fps = 25
	}
	w, h := resolutionSize(resolution)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.startNs = time.Now().UnixNano()
	go s.run(w, h, time.Second/time.Duration(fps), s.stop, s.done)
	return StatusOK
}

func (s *SyntheticLibrary) Release() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
	s.MockLibrary.Release()
}

func (s *SyntheticLibrary) run(w, h int, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.produce(w, h, interval)
		}
	}
}

// produce publishes one frame on every enabled channel.
func (s *SyntheticLibrary) produce(w, h int, interval time.Duration) {
	s.mu.Lock()
	s.frameNo++
	n := s.frameNo
	elapsed := float64(time.Now().UnixNano()-s.startNs) / 1e9
	jitter := s.rng.Float64()
	s.mu.Unlock()

	// Side by side stereo pair.
	img := make([]uint8, 2*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < 2*w; x++ {
			img[y*2*w+x] = uint8((x%w + y + int(n)) & 0xff)
		}
	}
	s.PublishImage(2*w, h, 1, img)
	left := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		copy(left[y*w:(y+1)*w], img[y*2*w:y*2*w+w])
	}

	dw, dh := w, h
	// A tilted plane 0.5 m to 3.5 m away with a moving near blob.
	cx := float64(dw) * (0.5 + 0.3*math.Sin(elapsed))
	cy := float64(dh) / 2
	depth := make([]uint16, dw*dh)
	disp := make([]float32, dw*dh)
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			mm := 500 + 3000*float64(y)/float64(dh)
			if math.Hypot(float64(x)-cx, float64(y)-cy) < float64(dh)/8 {
				mm = 800
			}
			// Holes along the border, as the stereo matcher leaves them.
			if x < 4 || x >= dw-4 {
				mm = 0
			}
			depth[y*dw+x] = uint16(mm)
			if mm > 0 {
				disp[y*dw+x] = float32(392.5 * 0.12 * 1000 / mm)
			}
		}
	}
	if s.Enabled(ChannelDepth) {
		s.PublishDepth(dw, dh, depth)
	}
	if s.Enabled(ChannelDisparity) {
		s.PublishDisparity(dw, dh, disp)
	}
	if s.Enabled(ChannelRectified) {
		s.PublishRectified(w, h, 1, left)
	}
	if s.Enabled(ChannelPoints) {
		pts := make([]float32, 0, (dw/8)*(dh/8)*3)
		for y := 0; y < dh; y += 8 {
			for x := 0; x < dw; x += 8 {
				z := float32(depth[y*dw+x]) / 1000
				if z == 0 {
					continue
				}
				pts = append(pts,
					(float32(x)-float32(dw)/2)*z/392.5,
					(float32(y)-float32(dh)/2)*z/392.5,
					z)
			}
		}
		s.PublishPoints(dw/8, dh/8, pts)
	}
	if s.Enabled(ChannelIMU) {
		count := int(s.IMURate * interval.Seconds())
		samples := make([][IMUFields]float64, 0, count)
		for i := 0; i < count; i++ {
			t := elapsed + float64(i)/s.IMURate
			samples = append(samples, [IMUFields]float64{
				t,
				0.01 * math.Sin(t), 0.01 * math.Cos(t), 9.81 + 0.005*jitter,
				0.001 * math.Sin(2*t), 0.001 * math.Cos(2*t), 0,
			})
		}
		s.PublishIMU(samples...)
	}
	if s.Enabled(ChannelDetector) {
		bw, bh := int32(h/4), int32(h/4)
		boxes := []DetectionBox{{
			X: int32(cx) - bw/2, Y: int32(cy) - bh/2, W: bw, H: bh,
			ClassID: 1, ScoreMilli: int32(850 + 100*jitter),
		}}
		if n%50 < 10 {
			boxes = append(boxes, DetectionBox{X: 10, Y: int32(h) - 60, W: 80, H: 40, ClassID: 8, ScoreMilli: 610})
		}
		s.PublishDetections(boxes, w, h, 1, left)
	}
}

// String identifies the synthetic library in logs.
func (s *SyntheticLibrary) String() string {
	return fmt.Sprintf("synthetic camera (imu %.0f Hz)", s.IMURate)
}

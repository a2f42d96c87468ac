package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

//Source is a recorded video file or a camera device
type Source struct {
	capture *gocv.VideoCapture
	fps     float64
	width   int
	height  int
}

//OpenFile opens a recorded video. defaultFPS is used when the container does not report a frame rate.
func OpenFile(path string, defaultFPS float64) (*Source, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video '%s': %w", path, err)
	}
	return newSource(capture, defaultFPS), nil
}

//OpenDevice opens a camera
func OpenDevice(device int, defaultFPS float64) (*Source, error) {
	capture, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", device, err)
	}
	return newSource(capture, defaultFPS), nil
}

func newSource(capture *gocv.VideoCapture, defaultFPS float64) *Source {
	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = defaultFPS
	}

	return &Source{
		capture: capture,
		fps:     fps,
		width:   int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:  int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
}

//Read reads the next frame into frame, false once the source is exhausted
func (s *Source) Read(frame *gocv.Mat) bool {
	return s.capture.Read(frame) && !frame.Empty()
}

//FPS returns the frame rate used to turn frame indexes into timestamps
func (s *Source) FPS() float64 {
	return s.fps
}

//Size returns the frame size reported by the source
func (s *Source) Size() (int, int) {
	return s.width, s.height
}

//Timestamp converts a frame index to seconds
func (s *Source) Timestamp(frameIndex int) float64 {
	return float64(frameIndex) / s.fps
}

func (s *Source) Close() error {
	return s.capture.Close()
}

package video

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/shot-tracker/pkg/pose"
)

//openPoseParts maps our landmarks to the COCO body parts of the OpenPose heatmaps
var openPoseParts = [pose.NumLandmarks]int{
	pose.Nose:          0,
	pose.RightShoulder: 2,
	pose.RightElbow:    3,
	pose.RightWrist:    4,
	pose.LeftShoulder:  5,
	pose.LeftElbow:     6,
	pose.LeftWrist:     7,
	pose.RightHip:      8,
	pose.RightKnee:     9,
	pose.RightAnkle:    10,
	pose.LeftHip:       11,
	pose.LeftKnee:      12,
	pose.LeftAnkle:     13,
}

//OpenPoseEstimator finds body joints with the OpenPose tensorflow graph
type OpenPoseEstimator struct {
	mu        sync.Mutex
	net       gocv.Net
	threshold float64
}

//NewOpenPoseEstimator loads the graph once. Heatmap peaks at or below threshold are treated as not found.
func NewOpenPoseEstimator(modelPath string, threshold float64) (*OpenPoseEstimator, error) {
	net := gocv.ReadNetFromTensorflow(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("NewOpenPoseEstimator: Could not load model '%s'", modelPath)
	}
	return &OpenPoseEstimator{net: net, threshold: threshold}, nil
}

//Estimate gets a crop of a frame holding one person and returns its landmarks normalized to the crop.
//The confidence of each heatmap peak is used as the landmark's visibility. nil is returned when no joint is found.
func (e *OpenPoseEstimator) Estimate(crop gocv.Mat) (*pose.LandmarkSet, error) {
	if crop.Empty() {
		return nil, errors.New("OpenPoseEstimator: empty crop")
	}

	blob := gocv.BlobFromImage(crop, 1, image.Point{X: crop.Cols(), Y: crop.Rows()}, gocv.NewScalar(127.5, 127.5, 127.5, 127.5), true, false)
	defer blob.Close()

	e.mu.Lock()
	e.net.SetInput(blob, "")
	prob := e.net.Forward("")
	e.mu.Unlock()
	defer prob.Close()

	s := prob.Size()
	if len(s) != 4 || s[1] <= openPoseParts[pose.LeftAnkle] {
		return nil, fmt.Errorf("OpenPoseEstimator: unexpected output shape %v", s)
	}
	h, w := s[2], s[3]

	set := &pose.LandmarkSet{}
	found := 0
	for l, part := range openPoseParts {
		heatmap, err := prob.FromPtr(h, w, gocv.MatTypeCV32F, 0, part)
		if err != nil {
			return nil, fmt.Errorf("OpenPoseEstimator: heatmap %d, got '%v'", part, err)
		}

		_, conf, _, pt := gocv.MinMaxLoc(heatmap)
		heatmap.Close()
		if float64(conf) <= e.threshold {
			continue
		}

		set.Points[l] = pose.Keypoint{
			X:          (float64(pt.X) + 0.5) / float64(w),
			Y:          (float64(pt.Y) + 0.5) / float64(h),
			Visibility: float64(conf),
		}
		found++
	}

	if found == 0 {
		return nil, nil
	}
	return set, nil
}

//Close releases the network
func (e *OpenPoseEstimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}

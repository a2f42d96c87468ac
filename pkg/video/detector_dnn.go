package video

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/shot-tracker/pkg/logger"
	"github.com/chenBenjamin97/shot-tracker/pkg/vision"
)

//DNNDetector runs a YOLOv8 ONNX model in process with OpenCV's dnn module.
//The model output is [1, 4+classes, anchors]: center x, center y, width, height and one score per COCO class.
type DNNDetector struct {
	mu           sync.Mutex
	net          gocv.Net
	inputSize    int
	minScore     float32
	nmsThreshold float32
}

//NewDNNDetector loads the model once. minScore drops candidates before NMS, the processor applies the per class
//thresholds afterwards.
func NewDNNDetector(modelPath string, inputSize int, minScore, nmsThreshold float32) (*DNNDetector, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("NewDNNDetector: Could not load model '%s'", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		logger.Warn("detector", "set backend: %v", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		logger.Warn("detector", "set target: %v", err)
	}
	logger.Info("detector", "loaded '%s' (input %dx%d)", modelPath, inputSize, inputSize)

	return &DNNDetector{net: net, inputSize: inputSize, minScore: minScore, nmsThreshold: nmsThreshold}, nil
}

//Detect returns the persons and balls found in frame
func (d *DNNDetector) Detect(frame gocv.Mat) ([]vision.Detection, error) {
	if frame.Empty() {
		return nil, errors.New("DNNDetector: empty frame")
	}

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	prob := d.net.Forward("")
	d.mu.Unlock()
	defer prob.Close()

	size := prob.Size()
	if len(size) != 3 || size[1] <= cocoBall+4 {
		return nil, fmt.Errorf("DNNDetector: unexpected output shape %v", size)
	}

	rows := prob.Reshape(1, size[1]) //[4+classes, anchors]
	defer rows.Close()
	anchors := gocv.NewMat()
	defer anchors.Close()
	gocv.Transpose(rows, &anchors) //[anchors, 4+classes]

	xFactor := float64(frame.Cols()) / float64(d.inputSize)
	yFactor := float64(frame.Rows()) / float64(d.inputSize)

	var candidates []vision.Detection
	for i := 0; i < anchors.Rows(); i++ {
		for _, c := range []struct {
			col   int
			class vision.Class
		}{{4 + cocoPerson, vision.ClassPerson}, {4 + cocoBall, vision.ClassBall}} {
			score := anchors.GetFloatAt(i, c.col)
			if score < d.minScore {
				continue
			}

			cx, cy := float64(anchors.GetFloatAt(i, 0)), float64(anchors.GetFloatAt(i, 1))
			w, h := float64(anchors.GetFloatAt(i, 2)), float64(anchors.GetFloatAt(i, 3))
			candidates = append(candidates, vision.Detection{
				Class:      c.class,
				Confidence: score,
				Box: vision.BoxFromRect(image.Rect(
					int((cx-w/2)*xFactor), int((cy-h/2)*yFactor),
					int((cx+w/2)*xFactor), int((cy+h/2)*yFactor))),
			})
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	return vision.SuppressPerClass(candidates, func(boxes []image.Rectangle, scores []float32) []int {
		return gocv.NMSBoxes(boxes, scores, d.minScore, d.nmsThreshold)
	}), nil
}

//Close releases the network
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

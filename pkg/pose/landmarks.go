//Package pose models the body keypoints produced by a pose estimator and the joint geometry derived from them.
package pose

import (
	"math"

	"github.com/chenBenjamin97/shot-tracker/pkg/vision"
)

//Landmark names one anatomical keypoint
type Landmark int

const (
	Nose Landmark = iota
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	NumLandmarks
)

var landmarkNames = [NumLandmarks]string{
	"nose", "left_shoulder", "right_shoulder", "left_elbow", "right_elbow", "left_wrist", "right_wrist",
	"left_hip", "right_hip", "left_knee", "right_knee", "left_ankle", "right_ankle",
}

func (l Landmark) String() string {
	if l < 0 || l >= NumLandmarks {
		return "unknown"
	}
	return landmarkNames[l]
}

//Keypoint is a landmark position normalized to [0,1] relative to its image, plus the estimator's visibility.
//Estimators that do not report visibility leave it at 0.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

//Pixel converts the normalized position to pixels of a frame with the given size
func (k Keypoint) Pixel(frameWidth, frameHeight int) (float64, float64) {
	return k.X * float64(frameWidth), k.Y * float64(frameHeight)
}

//LandmarkSet is the fixed collection of keypoints of one body in one frame. Values are never modified after creation,
//transformations return new sets.
type LandmarkSet struct {
	Points [NumLandmarks]Keypoint `json:"points"`
}

//Get returns the keypoint of landmark l
func (s *LandmarkSet) Get(l Landmark) Keypoint {
	return s.Points[l]
}

//Adjust maps a set estimated on a crop (normalized to the crop) to coordinates normalized to the whole frame.
//crop is the crop rectangle in pixels of a frame sized frameWidth x frameHeight.
func (s *LandmarkSet) Adjust(crop vision.BoundingBox, frameWidth, frameHeight int) *LandmarkSet {
	adjusted := &LandmarkSet{}
	cropW, cropH := float64(crop.Width()), float64(crop.Height())
	for i, p := range s.Points {
		adjusted.Points[i] = Keypoint{
			X:          (float64(crop.Xmin) + p.X*cropW) / float64(frameWidth),
			Y:          (float64(crop.Ymin) + p.Y*cropH) / float64(frameHeight),
			Visibility: p.Visibility,
		}
	}
	return adjusted
}

//Side is the body side of a limb
type Side string

const (
	SideRight Side = "right"
	SideLeft  Side = "left"
)

//ShootingSide picks the wrist with the higher visibility. Exact ties go to the right side.
func (s *LandmarkSet) ShootingSide() Side {
	if s.Points[LeftWrist].Visibility > s.Points[RightWrist].Visibility {
		return SideLeft
	}
	return SideRight
}

//Arm groups the three keypoints of one arm
type Arm struct {
	Side     Side
	Shoulder Keypoint
	Elbow    Keypoint
	Wrist    Keypoint
}

//Arm returns the keypoints of the arm on the given side
func (s *LandmarkSet) Arm(side Side) Arm {
	if side == SideLeft {
		return Arm{Side: side, Shoulder: s.Points[LeftShoulder], Elbow: s.Points[LeftElbow], Wrist: s.Points[LeftWrist]}
	}
	return Arm{Side: side, Shoulder: s.Points[RightShoulder], Elbow: s.Points[RightElbow], Wrist: s.Points[RightWrist]}
}

//Visible reports whether every keypoint of the arm reaches minVisibility
func (a Arm) Visible(minVisibility float64) bool {
	return a.Shoulder.Visibility >= minVisibility && a.Elbow.Visibility >= minVisibility && a.Wrist.Visibility >= minVisibility
}

//ElbowAngle returns the shoulder-elbow-wrist angle in degrees, measured in pixels of the given frame so the
//frame's aspect ratio does not distort it. 180 is a fully extended arm.
func (a Arm) ElbowAngle(frameWidth, frameHeight int) float64 {
	sx, sy := a.Shoulder.Pixel(frameWidth, frameHeight)
	ex, ey := a.Elbow.Pixel(frameWidth, frameHeight)
	wx, wy := a.Wrist.Pixel(frameWidth, frameHeight)
	return JointAngle(sx, sy, ex, ey, wx, wy)
}

//JointAngle returns the angle at (bx,by) formed by the segments to (ax,ay) and (cx,cy), in degrees within [0,180].
//Degenerate segments give 0.
func JointAngle(ax, ay, bx, by, cx, cy float64) float64 {
	v1x, v1y := ax-bx, ay-by
	v2x, v2y := cx-bx, cy-by
	n1 := math.Hypot(v1x, v1y)
	n2 := math.Hypot(v2x, v2y)
	if n1 == 0 || n2 == 0 {
		return 0
	}

	cos := (v1x*v2x + v1y*v2y) / (n1 * n2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

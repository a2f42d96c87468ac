//Package vision holds the per-frame object detection types shared by the detectors and the ball tracker.
package vision

import (
	"image"
	"math"
)

//Class identifies the kind of object a detector found
type Class int

const (
	//ClassPerson is a detected person (shooter candidate)
	ClassPerson Class = iota
	//ClassBall is a detected basketball
	ClassBall
)

func (c Class) String() string {
	switch c {
	case ClassPerson:
		return "person"
	case ClassBall:
		return "ball"
	default:
		return "unknown"
	}
}

//BoundingBox is an axis aligned box in frame pixel coordinates
type BoundingBox struct {
	Xmin int
	Ymin int
	Xmax int
	Ymax int
}

//Detection is one object instance found in a single frame. It lives only while that frame is processed.
type Detection struct {
	Class      Class
	Confidence float32
	Box        BoundingBox
}

//BoxFromRect converts an image.Rectangle to a BoundingBox
func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{Xmin: r.Min.X, Ymin: r.Min.Y, Xmax: r.Max.X, Ymax: r.Max.Y}
}

//Rect returns the box as an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Xmin, b.Ymin, b.Xmax, b.Ymax)
}

//Width returns the box width in pixels
func (b BoundingBox) Width() int {
	return b.Xmax - b.Xmin
}

//Height returns the box height in pixels
func (b BoundingBox) Height() int {
	return b.Ymax - b.Ymin
}

//Center returns the box center
func (b BoundingBox) Center() (float64, float64) {
	return float64(b.Xmin+b.Xmax) / 2, float64(b.Ymin+b.Ymax) / 2
}

//Empty is true for degenerate boxes (zero or negative area)
func (b BoundingBox) Empty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

//Scale multiplies every coordinate by factor, used to map boxes found on a downscaled frame back to the full frame
func (b BoundingBox) Scale(factor float64) BoundingBox {
	return BoundingBox{
		Xmin: int(math.Round(float64(b.Xmin) * factor)),
		Ymin: int(math.Round(float64(b.Ymin) * factor)),
		Xmax: int(math.Round(float64(b.Xmax) * factor)),
		Ymax: int(math.Round(float64(b.Ymax) * factor)),
	}
}

//Fix returns a copy of the box clamped into a frame of the given size
func (b BoundingBox) Fix(frameWidth, frameHeight int) BoundingBox {
	clamp := func(v, limit int) int {
		if v < 0 {
			return 0
		}
		if v > limit {
			return limit
		}
		return v
	}

	return BoundingBox{
		Xmin: clamp(b.Xmin, frameWidth),
		Ymin: clamp(b.Ymin, frameHeight),
		Xmax: clamp(b.Xmax, frameWidth),
		Ymax: clamp(b.Ymax, frameHeight),
	}
}

//FilterClass returns detections of the given class, keeping their order
func FilterClass(detections []Detection, class Class) []Detection {
	res := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Class == class {
			res = append(res, d)
		}
	}
	return res
}

//MostConfident returns the highest confidence detection; the earliest one wins ties
func MostConfident(detections []Detection) (Detection, bool) {
	if len(detections) == 0 {
		return Detection{}, false
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}

//SuppressPerClass runs nms separately on the detections of every class, so a ball held against a person is never
//suppressed by the person's box. nms returns the indices of the boxes it keeps. Classes come out in order of first
//appearance.
func SuppressPerClass(detections []Detection, nms func(boxes []image.Rectangle, scores []float32) []int) []Detection {
	var order []Class
	groups := make(map[Class][]Detection)
	for _, d := range detections {
		if _, ok := groups[d.Class]; !ok {
			order = append(order, d.Class)
		}
		groups[d.Class] = append(groups[d.Class], d)
	}

	res := make([]Detection, 0, len(detections))
	for _, class := range order {
		group := groups[class]
		boxes := make([]image.Rectangle, len(group))
		scores := make([]float32, len(group))
		for i, d := range group {
			boxes[i] = d.Box.Rect()
			scores[i] = d.Confidence
		}

		for _, idx := range nms(boxes, scores) {
			if idx >= 0 && idx < len(group) {
				res = append(res, group[idx])
			}
		}
	}
	return res
}

package video

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/shot-tracker/pkg/pose"
)

//bannerSeconds is how long a shot message stays on screen
const bannerSeconds = 2.0

var (
	personColor   = color.RGBA{0, 255, 0, 0}
	skeletonColor = color.RGBA{0, 200, 255, 0}
	ballColor     = color.RGBA{255, 128, 0, 0}
	trailColor    = color.RGBA{255, 64, 0, 0}
	shotColor     = color.RGBA{255, 255, 0, 0}
	ignoredColor  = color.RGBA{160, 160, 160, 0}
	whiteRGB      = color.RGBA{255, 255, 255, 0}
)

//skeleton lists the landmark pairs drawn as bones
var skeleton = [][2]pose.Landmark{
	{pose.LeftShoulder, pose.RightShoulder},
	{pose.LeftShoulder, pose.LeftElbow},
	{pose.LeftElbow, pose.LeftWrist},
	{pose.RightShoulder, pose.RightElbow},
	{pose.RightElbow, pose.RightWrist},
	{pose.LeftShoulder, pose.LeftHip},
	{pose.RightShoulder, pose.RightHip},
	{pose.LeftHip, pose.RightHip},
	{pose.LeftHip, pose.LeftKnee},
	{pose.LeftKnee, pose.LeftAnkle},
	{pose.RightHip, pose.RightKnee},
	{pose.RightKnee, pose.RightAnkle},
}

//Overlay draws processing results on frames. It remembers the last shot message so it stays visible for a while.
//One overlay is used per video or camera.
type Overlay struct {
	minVisibility float64
	banner        string
	bannerColor   color.RGBA
	bannerUntil   float64
}

//NewOverlay creates an overlay. Keypoints below minVisibility are not drawn.
func NewOverlay(minVisibility float64) *Overlay {
	return &Overlay{minVisibility: minVisibility}
}

//Draw plots res on frame, ts is the frame's timestamp in seconds
func (o *Overlay) Draw(frame *gocv.Mat, res FrameResult, ts float64) {
	width, height := frame.Cols(), frame.Rows()

	if res.Person != nil {
		gocv.Rectangle(frame, res.Person.Rect(), personColor, 3)
	}
	if res.Landmarks != nil {
		o.plotSkeleton(frame, res.Landmarks, width, height)
	}

	for _, ball := range res.Balls {
		gocv.Rectangle(frame, ball.Box.Rect(), ballColor, 2)
	}
	for i, pt := range res.Trajectory {
		center := image.Pt(int(pt.X), int(pt.Y))
		gocv.Circle(frame, center, 3, trailColor, -1) //thickness -1 == filled circle
		if i > 0 {
			prev := res.Trajectory[i-1]
			gocv.Line(frame, image.Pt(int(prev.X), int(prev.Y)), center, trailColor, 2)
		}
	}

	switch {
	case res.Outcome.Shot != nil:
		shot := res.Outcome.Shot
		o.setBanner(fmt.Sprintf("Shot %d: %s (%.0f%%)", res.Outcome.ShotNumber, strings.ToUpper(string(shot.Result())), shot.Confidence()*100), shotColor, ts)
	case res.Outcome.Rejected != nil:
		o.setBanner("Shot ignored (no ball separation)", ignoredColor, ts)
	}

	gocv.PutText(frame, fmt.Sprintf("Phase: %s", res.Outcome.Phase), image.Pt(10, 25), gocv.FontHersheyPlain, 1.5, whiteRGB, 2)
	if o.banner != "" && ts <= o.bannerUntil {
		gocv.PutText(frame, o.banner, image.Pt(10, 60), gocv.FontHersheySimplex, 1, o.bannerColor, 2)
	}
}

func (o *Overlay) setBanner(text string, c color.RGBA, ts float64) {
	o.banner = text
	o.bannerColor = c
	o.bannerUntil = ts + bannerSeconds
}

//plotSkeleton draws the visible joints and the bones between them
func (o *Overlay) plotSkeleton(frame *gocv.Mat, set *pose.LandmarkSet, width, height int) {
	point := func(l pose.Landmark) (image.Point, bool) {
		k := set.Get(l)
		if k.Visibility < o.minVisibility {
			return image.Point{}, false
		}
		x, y := k.Pixel(width, height)
		return image.Pt(int(x), int(y)), true
	}

	for _, bone := range skeleton {
		a, okA := point(bone[0])
		b, okB := point(bone[1])
		if okA && okB {
			gocv.Line(frame, a, b, skeletonColor, 2)
		}
	}

	for l := pose.Landmark(0); l < pose.NumLandmarks; l++ {
		if pt, ok := point(l); ok {
			gocv.Circle(frame, pt, 4, skeletonColor, -1)
		}
	}
}

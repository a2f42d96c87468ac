package video

import (
	"context"

	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/shot-tracker/pkg/pipeline"
	"github.com/chenBenjamin97/shot-tracker/pkg/pose"
	"github.com/chenBenjamin97/shot-tracker/pkg/shot"
	"github.com/chenBenjamin97/shot-tracker/pkg/storage"
	"github.com/chenBenjamin97/shot-tracker/pkg/tracking"
	"github.com/chenBenjamin97/shot-tracker/pkg/vision"
)

//ObjectDetector finds persons and balls in a frame. Boxes are in pixels of the given frame.
type ObjectDetector interface {
	Detect(frame gocv.Mat) ([]vision.Detection, error)
	Close() error
}

//PoseEstimator finds the landmarks of the single person in crop, normalized to the crop. A nil set without error
//means no pose was found.
type PoseEstimator interface {
	Estimate(crop gocv.Mat) (*pose.LandmarkSet, error)
	Close() error
}

//Store is the persistence the processing jobs need
type Store interface {
	CreateVideo(ctx context.Context, filename, filePath string) (storage.Video, error)
	SetVideoStatus(ctx context.Context, id, status, errMsg string) error
	FinishVideo(ctx context.Context, id string, s storage.VideoSummary, records []shot.Record, jobErr error) error
	InsertShot(ctx context.Context, videoID string, rec shot.Record) error
}

//wireDetection is one detection line of the external detector protocol
type wireDetection struct {
	Class      int     `json:"Class"`
	Confidence float32 `json:"Confidence"`
	Xmin       int     `json:"Xmin"`
	Ymin       int     `json:"Ymin"`
	Xmax       int     `json:"Xmax"`
	Ymax       int     `json:"Ymax"`
}

//wireRequest is sent to the external detector for every frame
type wireRequest struct {
	Frame  int    `json:"frame"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	JPEG   []byte `json:"jpeg"` //base64 in JSON
}

//wireResponse is the external detector's answer to one wireRequest
type wireResponse struct {
	Frame      int             `json:"frame"`
	Detections []wireDetection `json:"detections"`
	Error      string          `json:"error,omitempty"`
}

//FrameResult is what one processed frame produced, kept for drawing the overlay
type FrameResult struct {
	Outcome    pipeline.Outcome
	Person     *vision.BoundingBox //box of the body the landmarks belong to
	Landmarks  *pose.LandmarkSet   //frame normalized
	Balls      []vision.Detection
	Trajectory []tracking.TrajectoryPoint
}

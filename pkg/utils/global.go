package utils

//WristBufferCapacity is the number of wrist samples kept per session (several seconds at typical frame rate)
const WristBufferCapacity = 180

//BallBufferCapacity is the number of raw ball samples kept per session for shot verification
const BallBufferCapacity = 180

//TrajectoryCapacity is the number of accepted ball positions kept by the live ball tracker
const TrajectoryCapacity = 30

//DefaultFPS is used when a video source does not report its frame rate
const DefaultFPS = 30.0

//VideoStatusUploaded marks a video saved to disk and waiting for processing
const VideoStatusUploaded = "uploaded"

//VideoStatusProcessing marks a video whose frames are being analyzed
const VideoStatusProcessing = "processing"

//VideoStatusDone marks a fully analyzed video
const VideoStatusDone = "done"

//VideoStatusFailed marks a video whose processing job stopped on an error
const VideoStatusFailed = "failed"

//VideoStatusLive marks the video row owned by a live camera stream
const VideoStatusLive = "live"

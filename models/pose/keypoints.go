// Package pose - Decoding and topology for YOLOv8-style multi-person pose heads.
package pose

import (
	"github.com/nvr-ai/go-posetrack/images"
	"github.com/pkg/errors"
)

// COCO keypoint indices.
//
// 0: nose, 1: left eye, 2: right eye, 3: left ear, 4: right ear,
// 5: left shoulder, 6: right shoulder, 7: left elbow, 8: right elbow,
// 9: left wrist, 10: right wrist, 11: left hip, 12: right hip,
// 13: left knee, 14: right knee, 15: left ankle, 16: right ankle.
const (
	Nose = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
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
)

// COCOKeypointCount is the number of keypoints in the COCO person topology.
const COCOKeypointCount = 17

// KeypointNames holds the COCO keypoint labels indexed by keypoint id.
var KeypointNames = [COCOKeypointCount]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

// ErrMissingKeypoints is returned when a detection does not carry the
// shoulder and hip keypoints needed for the torso anchor.
var ErrMissingKeypoints = errors.New("detection is missing torso keypoints")

// SkeletonEdges returns the 12 limb connections drawn between keypoints.
func SkeletonEdges() [][2]int {
	return [][2]int{
		{LeftShoulder, LeftElbow}, {LeftElbow, LeftWrist},
		{RightShoulder, RightElbow}, {RightElbow, RightWrist},
		{LeftShoulder, RightShoulder},
		{LeftHip, LeftKnee}, {LeftKnee, LeftAnkle},
		{RightHip, RightKnee}, {RightKnee, RightAnkle},
		{LeftHip, RightHip},
		{LeftShoulder, LeftHip}, {RightShoulder, RightHip},
	}
}

// Keypoint is one body joint in model-input pixels with its raw score.
type Keypoint struct {
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Score float32 `json:"score"`
}

// Point drops the score.
func (k Keypoint) Point() images.Point {
	return images.Point{X: k.X, Y: k.Y}
}

// Detection is one accepted person after suppression.
type Detection struct {
	AnchorIndex int         `json:"anchor_index"`
	Confidence  float32     `json:"confidence"`
	Box         images.Rect `json:"box"`
	// Keypoints always has exactly the decoder's keypoint count. Entries are
	// not filtered by score.
	Keypoints []Keypoint `json:"keypoints"`
}

// TorsoAnchor returns the midpoint between the shoulder midpoint and the hip
// midpoint, in model-input pixels.
func (d Detection) TorsoAnchor() (images.Point, error) {
	if len(d.Keypoints) <= RightHip {
		return images.Point{}, errors.Wrapf(ErrMissingKeypoints, "have %d keypoints", len(d.Keypoints))
	}

	shoulders := d.Keypoints[LeftShoulder].Point().Midpoint(d.Keypoints[RightShoulder].Point())
	hips := d.Keypoints[LeftHip].Point().Midpoint(d.Keypoints[RightHip].Point())

	return shoulders.Midpoint(hips), nil
}

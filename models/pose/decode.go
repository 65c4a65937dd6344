package pose

import (
	"github.com/nvr-ai/go-posetrack/images"
	"github.com/nvr-ai/go-posetrack/models/postprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Channel layout of a pose head: 4 box params, 1 person confidence, then one
// (x, y, score) triplet per keypoint.
const (
	boxChannels       = 4
	confidenceChannel = 4
	keypointBase      = 5
	keypointStride    = 3
)

// ErrShapeMismatch is returned when a tensor does not have the [1, 5+3K, N]
// layout the decoder was configured for.
var ErrShapeMismatch = errors.New("tensor shape mismatch")

// Decoder reads candidates and keypoints out of a raw pose tensor.
type Decoder struct {
	// Threshold is the minimum person confidence for an anchor to be kept.
	Threshold float32
	// KeypointCount is K in the channel layout.
	KeypointCount int
}

// NewDecoder returns a Decoder for COCO-17 pose heads.
func NewDecoder(threshold float32) *Decoder {
	return &Decoder{Threshold: threshold, KeypointCount: COCOKeypointCount}
}

// Channels is the expected channel count, 5 + 3K.
func (d *Decoder) Channels() int {
	return keypointBase + keypointStride*d.KeypointCount
}

type materializer interface {
	IsMaterializable() bool
	Materialize() tensor.Tensor
}

// view validates t and returns its backing data with the anchor count.
func (d *Decoder) view(t tensor.Tensor) ([]float32, int, error) {
	if t == nil {
		return nil, 0, errors.Wrap(ErrShapeMismatch, "nil tensor")
	}

	shape := t.Shape()
	if t.Dims() != 3 || shape[0] != 1 || shape[1] != d.Channels() {
		return nil, 0, errors.Wrapf(ErrShapeMismatch, "got %v, want [1 %d N]", shape, d.Channels())
	}
	if t.Dtype() != tensor.Float32 {
		return nil, 0, errors.Wrapf(ErrShapeMismatch, "got dtype %v, want float32", t.Dtype())
	}

	if m, ok := t.(materializer); ok && m.IsMaterializable() {
		t = m.Materialize()
	}

	data, ok := t.Data().([]float32)
	if !ok {
		return nil, 0, errors.Wrapf(ErrShapeMismatch, "backing data is %T", t.Data())
	}

	n := shape[2]
	if len(data) < d.Channels()*n {
		return nil, 0, errors.Wrapf(ErrShapeMismatch, "backing data has %d values, want %d", len(data), d.Channels()*n)
	}

	return data, n, nil
}

// Decode returns every anchor whose person confidence is at least the
// threshold, in anchor order.
//
// The tensor is channel-major: the value for channel c at anchor i lives at
// data[c*N+i].
//
// Arguments:
//   - t: A float32 tensor of shape [1, 5+3K, N].
//
// Returns:
//   - []postprocess.Candidate: Candidates with boxes in model-input pixels.
//   - error: ErrShapeMismatch if the tensor layout is wrong.
func (d *Decoder) Decode(t tensor.Tensor) ([]postprocess.Candidate, error) {
	data, n, err := d.view(t)
	if err != nil {
		return nil, err
	}

	var candidates []postprocess.Candidate
	for i := 0; i < n; i++ {
		conf := data[confidenceChannel*n+i]
		if conf < d.Threshold {
			continue
		}

		var box [boxChannels]float32
		for c := range box {
			box[c] = data[c*n+i]
		}

		candidates = append(candidates, postprocess.Candidate{
			AnchorIndex: i,
			Confidence:  conf,
			Box:         images.RectFromCenter(box[0], box[1], box[2], box[3]),
		})
	}

	return candidates, nil
}

// Detection expands a surviving candidate with the keypoints of its anchor.
func (d *Decoder) Detection(t tensor.Tensor, c postprocess.Candidate) (Detection, error) {
	data, n, err := d.view(t)
	if err != nil {
		return Detection{}, err
	}
	if c.AnchorIndex < 0 || c.AnchorIndex >= n {
		return Detection{}, errors.Wrapf(ErrShapeMismatch, "anchor %d outside [0, %d)", c.AnchorIndex, n)
	}

	kps := make([]Keypoint, d.KeypointCount)
	for k := range kps {
		base := keypointBase + keypointStride*k
		kps[k] = Keypoint{
			X:     data[base*n+c.AnchorIndex],
			Y:     data[(base+1)*n+c.AnchorIndex],
			Score: data[(base+2)*n+c.AnchorIndex],
		}
	}

	return Detection{
		AnchorIndex: c.AnchorIndex,
		Confidence:  c.Confidence,
		Box:         c.Box,
		Keypoints:   kps,
	}, nil
}

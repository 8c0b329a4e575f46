// Package inference defines the contract with the ML sidecar that performs
// OCR, face detection, and PDF rasterization, plus the process-wide lazy
// runtime handle used to reach it.
package inference

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrUnavailable signals that the inference runtime is not reachable or not
// ready. Pipeline stages treat it as an extraction failure, never a crash.
var ErrUnavailable = errors.New("inference runtime unavailable")

// Face is one detected face with its embedding and bounding box.
type Face struct {
	Embedding []float32
	Width     float64
	Height    float64
	DetScore  float64
}

func (f Face) area() float64 { return f.Width * f.Height }

// Detection is the outcome of running face detection over one image.
type Detection struct {
	Faces       []Face
	ImageWidth  int
	ImageHeight int
}

// Largest returns the face with the biggest bounding box, on the heuristic
// that the intended subject is closest to the camera.
func (d *Detection) Largest() (Face, bool) {
	if d == nil || len(d.Faces) == 0 {
		return Face{}, false
	}
	best := d.Faces[0]
	for _, f := range d.Faces[1:] {
		if f.area() > best.area() {
			best = f
		}
	}
	return best, true
}

// Quality scores the largest face for verification fitness in [0,1].
// Detection confidence is discounted when the face occupies too little or
// too much of the frame.
func (d *Detection) Quality() float64 {
	f, ok := d.Largest()
	if !ok {
		return 0.0
	}
	quality := f.DetScore
	if quality <= 0 {
		quality = 1.0
	}
	if d.ImageWidth > 0 && d.ImageHeight > 0 {
		ratio := f.area() / float64(d.ImageWidth*d.ImageHeight)
		if ratio < 0.05 {
			quality *= 0.5
		} else if ratio > 0.6 {
			quality *= 0.8
		}
	}
	if quality > 1 {
		quality = 1
	}
	return quality
}

// Client is the subset of sidecar functionality the pipeline consumes.
type Client interface {
	Available(ctx context.Context) bool
	ExtractText(ctx context.Context, imageData []byte) (string, []string, error)
	DetectFaces(ctx context.Context, imageData []byte) (*Detection, error)
	RasterizePDF(ctx context.Context, pdfData []byte) ([]byte, error)
}

// DialFunc establishes a connection to the sidecar.
type DialFunc func(ctx context.Context) (Client, error)

// Runtime is the lazily-initialized process-wide handle to the sidecar.
// The connection is established on first use and reused for the process
// lifetime; a failed dial is remembered and surfaces as ErrUnavailable.
type Runtime struct {
	dial   DialFunc
	logger *zap.Logger

	once   sync.Once
	client Client
	err    error
}

// NewRuntime wraps a dial function in the initialize-once handle.
func NewRuntime(dial DialFunc, logger *zap.Logger) *Runtime {
	return &Runtime{dial: dial, logger: logger.Named("inference_runtime")}
}

func (r *Runtime) get(ctx context.Context) (Client, error) {
	r.once.Do(func() {
		client, err := r.dial(ctx)
		if err != nil {
			r.err = err
			r.logger.Warn("inference runtime dial failed, ML features disabled", zap.Error(err))
			return
		}
		r.client = client
		r.logger.Info("inference runtime connected")
	})
	if r.err != nil {
		return nil, ErrUnavailable
	}
	return r.client, nil
}

// Available probes the runtime without raising.
func (r *Runtime) Available(ctx context.Context) bool {
	client, err := r.get(ctx)
	if err != nil {
		return false
	}
	return client.Available(ctx)
}

// ExtractText runs OCR over an image.
func (r *Runtime) ExtractText(ctx context.Context, imageData []byte) (string, []string, error) {
	client, err := r.get(ctx)
	if err != nil {
		return "", nil, err
	}
	return client.ExtractText(ctx, imageData)
}

// DetectFaces runs face detection over an image.
func (r *Runtime) DetectFaces(ctx context.Context, imageData []byte) (*Detection, error) {
	client, err := r.get(ctx)
	if err != nil {
		return nil, err
	}
	return client.DetectFaces(ctx, imageData)
}

// RasterizePDF converts the first page of a PDF to a high-resolution image.
func (r *Runtime) RasterizePDF(ctx context.Context, pdfData []byte) ([]byte, error) {
	client, err := r.get(ctx)
	if err != nil {
		return nil, err
	}
	return client.RasterizePDF(ctx, pdfData)
}

var _ Client = (*Runtime)(nil)

package grpcclient

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/example/matchpoint/internal/inference"
	"github.com/example/matchpoint/internal/logging"
	"github.com/example/matchpoint/proto"
)

// Dialer returns an inference.DialFunc that connects to the sidecar at addr.
// Intended for use with inference.NewRuntime so the connection is only
// established on first use.
func Dialer(addr string, languages []string, logger *zap.Logger) inference.DialFunc {
	return func(ctx context.Context) (inference.Client, error) {
		return DialInference(ctx, addr, languages, logger)
	}
}

// DialInference connects to the inference sidecar and returns a ready client.
func DialInference(ctx context.Context, addr string, languages []string, logger *zap.Logger) (inference.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_inference", "", err)
		logger.Error("failed to dial inference sidecar", zap.Error(wrapped), zap.String("addr", addr))
		return nil, wrapped
	}
	return &grpcInference{
		client:    proto.NewInferenceClient(conn),
		languages: languages,
		logger:    logger.Named("inference_client"),
	}, nil
}

type grpcInference struct {
	client    proto.InferenceClient
	languages []string
	logger    *zap.Logger
}

func (g *grpcInference) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	resp, err := g.client.GetStatus(probeCtx, &proto.StatusRequest{})
	if err != nil {
		g.logger.Warn("inference status probe failed", zap.Error(err))
		return false
	}
	return resp.GetReady()
}

func (g *grpcInference) ExtractText(ctx context.Context, imageData []byte) (string, []string, error) {
	resp, err := g.client.ExtractText(ctx, &proto.ExtractTextRequest{
		ImageData: imageData,
		Languages: g.languages,
	})
	if err != nil {
		return "", nil, g.wrap("grpcclient.extract_text", err)
	}
	return resp.GetText(), resp.GetLines(), nil
}

func (g *grpcInference) DetectFaces(ctx context.Context, imageData []byte) (*inference.Detection, error) {
	resp, err := g.client.DetectFaces(ctx, &proto.DetectFacesRequest{ImageData: imageData})
	if err != nil {
		return nil, g.wrap("grpcclient.detect_faces", err)
	}

	detection := &inference.Detection{
		ImageWidth:  int(resp.ImageWidth),
		ImageHeight: int(resp.ImageHeight),
	}
	for _, f := range resp.GetFaces() {
		detection.Faces = append(detection.Faces, inference.Face{
			Embedding: f.GetEmbedding(),
			Width:     float64(f.GetWidth()),
			Height:    float64(f.GetHeight()),
			DetScore:  float64(f.GetDetScore()),
		})
	}
	return detection, nil
}

func (g *grpcInference) RasterizePDF(ctx context.Context, pdfData []byte) ([]byte, error) {
	resp, err := g.client.RasterizePDF(ctx, &proto.RasterizePDFRequest{PdfData: pdfData, Dpi: 200})
	if err != nil {
		return nil, g.wrap("grpcclient.rasterize_pdf", err)
	}
	return resp.GetImageData(), nil
}

// wrap maps transport-level unavailability to inference.ErrUnavailable so
// callers can degrade to manual review instead of failing the request.
func (g *grpcInference) wrap(operation string, err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.Unimplemented:
			g.logger.Warn("inference sidecar unavailable", zap.String("operation", operation), zap.Error(err))
			return inference.ErrUnavailable
		}
	}
	wrapped := logging.NewOperationError(operation, "", err)
	g.logger.Error("inference call failed", zap.Error(wrapped))
	return wrapped
}

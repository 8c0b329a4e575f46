// Package proto holds hand-maintained gRPC stubs for the inference
// sidecar. inference.proto is the source of truth; keep both in sync.
package proto

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/protoadapt"
)

type StatusRequest struct{}

func (m *StatusRequest) Reset()         { *m = StatusRequest{} }
func (m *StatusRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*StatusRequest) ProtoMessage()    {}

type StatusResponse struct {
	Ready  bool     `protobuf:"varint,1,opt,name=ready,proto3" json:"ready,omitempty"`
	Models []string `protobuf:"bytes,2,rep,name=models,proto3" json:"models,omitempty"`
}

func (m *StatusResponse) Reset()         { *m = StatusResponse{} }
func (m *StatusResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*StatusResponse) ProtoMessage()    {}

func (m *StatusResponse) GetReady() bool {
	if m != nil {
		return m.Ready
	}
	return false
}

func (m *StatusResponse) GetModels() []string {
	if m != nil {
		return m.Models
	}
	return nil
}

type ExtractTextRequest struct {
	ImageData []byte   `protobuf:"bytes,1,opt,name=image_data,json=imageData,proto3" json:"image_data,omitempty"`
	Languages []string `protobuf:"bytes,2,rep,name=languages,proto3" json:"languages,omitempty"`
}

func (m *ExtractTextRequest) Reset()         { *m = ExtractTextRequest{} }
func (m *ExtractTextRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*ExtractTextRequest) ProtoMessage()    {}

type ExtractTextResponse struct {
	Text  string   `protobuf:"bytes,1,opt,name=text,proto3" json:"text,omitempty"`
	Lines []string `protobuf:"bytes,2,rep,name=lines,proto3" json:"lines,omitempty"`
}

func (m *ExtractTextResponse) Reset()         { *m = ExtractTextResponse{} }
func (m *ExtractTextResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*ExtractTextResponse) ProtoMessage()    {}

func (m *ExtractTextResponse) GetText() string {
	if m != nil {
		return m.Text
	}
	return ""
}

func (m *ExtractTextResponse) GetLines() []string {
	if m != nil {
		return m.Lines
	}
	return nil
}

type DetectFacesRequest struct {
	ImageData []byte `protobuf:"bytes,1,opt,name=image_data,json=imageData,proto3" json:"image_data,omitempty"`
}

func (m *DetectFacesRequest) Reset()         { *m = DetectFacesRequest{} }
func (m *DetectFacesRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*DetectFacesRequest) ProtoMessage()    {}

type Face struct {
	Embedding []float32 `protobuf:"fixed32,1,rep,packed,name=embedding,proto3" json:"embedding,omitempty"`
	X         float32   `protobuf:"fixed32,2,opt,name=x,proto3" json:"x,omitempty"`
	Y         float32   `protobuf:"fixed32,3,opt,name=y,proto3" json:"y,omitempty"`
	Width     float32   `protobuf:"fixed32,4,opt,name=width,proto3" json:"width,omitempty"`
	Height    float32   `protobuf:"fixed32,5,opt,name=height,proto3" json:"height,omitempty"`
	DetScore  float32   `protobuf:"fixed32,6,opt,name=det_score,json=detScore,proto3" json:"det_score,omitempty"`
}

func (m *Face) Reset()         { *m = Face{} }
func (m *Face) String() string { return fmt.Sprintf("%+v", *m) }
func (*Face) ProtoMessage()    {}

func (m *Face) GetEmbedding() []float32 {
	if m != nil {
		return m.Embedding
	}
	return nil
}

func (m *Face) GetWidth() float32 {
	if m != nil {
		return m.Width
	}
	return 0
}

func (m *Face) GetHeight() float32 {
	if m != nil {
		return m.Height
	}
	return 0
}

func (m *Face) GetDetScore() float32 {
	if m != nil {
		return m.DetScore
	}
	return 0
}

type DetectFacesResponse struct {
	Faces       []*Face `protobuf:"bytes,1,rep,name=faces,proto3" json:"faces,omitempty"`
	ImageWidth  int32   `protobuf:"varint,2,opt,name=image_width,json=imageWidth,proto3" json:"image_width,omitempty"`
	ImageHeight int32   `protobuf:"varint,3,opt,name=image_height,json=imageHeight,proto3" json:"image_height,omitempty"`
}

func (m *DetectFacesResponse) Reset()         { *m = DetectFacesResponse{} }
func (m *DetectFacesResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*DetectFacesResponse) ProtoMessage()    {}

func (m *DetectFacesResponse) GetFaces() []*Face {
	if m != nil {
		return m.Faces
	}
	return nil
}

type RasterizePDFRequest struct {
	PdfData []byte `protobuf:"bytes,1,opt,name=pdf_data,json=pdfData,proto3" json:"pdf_data,omitempty"`
	Dpi     int32  `protobuf:"varint,2,opt,name=dpi,proto3" json:"dpi,omitempty"`
}

func (m *RasterizePDFRequest) Reset()         { *m = RasterizePDFRequest{} }
func (m *RasterizePDFRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*RasterizePDFRequest) ProtoMessage()    {}

type RasterizePDFResponse struct {
	ImageData []byte `protobuf:"bytes,1,opt,name=image_data,json=imageData,proto3" json:"image_data,omitempty"`
}

func (m *RasterizePDFResponse) Reset()         { *m = RasterizePDFResponse{} }
func (m *RasterizePDFResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*RasterizePDFResponse) ProtoMessage()    {}

func (m *RasterizePDFResponse) GetImageData() []byte {
	if m != nil {
		return m.ImageData
	}
	return nil
}

// The gRPC proto codec accepts these messages through the v1 adapter.
var (
	_ protoadapt.MessageV1 = (*StatusRequest)(nil)
	_ protoadapt.MessageV1 = (*StatusResponse)(nil)
	_ protoadapt.MessageV1 = (*ExtractTextRequest)(nil)
	_ protoadapt.MessageV1 = (*ExtractTextResponse)(nil)
	_ protoadapt.MessageV1 = (*DetectFacesRequest)(nil)
	_ protoadapt.MessageV1 = (*Face)(nil)
	_ protoadapt.MessageV1 = (*DetectFacesResponse)(nil)
	_ protoadapt.MessageV1 = (*RasterizePDFRequest)(nil)
	_ protoadapt.MessageV1 = (*RasterizePDFResponse)(nil)
)

// InferenceClient is the client API for the Inference service.
type InferenceClient interface {
	GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	ExtractText(ctx context.Context, in *ExtractTextRequest, opts ...grpc.CallOption) (*ExtractTextResponse, error)
	DetectFaces(ctx context.Context, in *DetectFacesRequest, opts ...grpc.CallOption) (*DetectFacesResponse, error)
	RasterizePDF(ctx context.Context, in *RasterizePDFRequest, opts ...grpc.CallOption) (*RasterizePDFResponse, error)
}

type inferenceClient struct {
	cc grpc.ClientConnInterface
}

// NewInferenceClient constructs a client bound to an existing connection.
func NewInferenceClient(cc grpc.ClientConnInterface) InferenceClient {
	return &inferenceClient{cc: cc}
}

func (c *inferenceClient) GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, "/matchpoint.inference.v1.Inference/GetStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inferenceClient) ExtractText(ctx context.Context, in *ExtractTextRequest, opts ...grpc.CallOption) (*ExtractTextResponse, error) {
	out := new(ExtractTextResponse)
	if err := c.cc.Invoke(ctx, "/matchpoint.inference.v1.Inference/ExtractText", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inferenceClient) DetectFaces(ctx context.Context, in *DetectFacesRequest, opts ...grpc.CallOption) (*DetectFacesResponse, error) {
	out := new(DetectFacesResponse)
	if err := c.cc.Invoke(ctx, "/matchpoint.inference.v1.Inference/DetectFaces", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inferenceClient) RasterizePDF(ctx context.Context, in *RasterizePDFRequest, opts ...grpc.CallOption) (*RasterizePDFResponse, error) {
	out := new(RasterizePDFResponse)
	if err := c.cc.Invoke(ctx, "/matchpoint.inference.v1.Inference/RasterizePDF", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Package inference talks to a KServe-v2 compatible model server (e.g.
// NVIDIA Triton) over gRPC or HTTP and decodes classification outputs.
package inference

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Protocol selects the transport used to reach the inference server.
type Protocol string

const (
	ProtocolHTTP Protocol = "http"
	ProtocolGRPC Protocol = "grpc"
)

// ParseProtocol normalizes the user-facing protocol flag value.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(s) {
	case "http":
		return ProtocolHTTP, nil
	case "grpc":
		return ProtocolGRPC, nil
	default:
		return "", ErrUnsupportedProtocol
	}
}

// TensorMetadata describes one declared model input or output.
type TensorMetadata struct {
	Name     string
	Datatype string
	Shape    []int64
}

// TensorConfig is the per-tensor slice of the model configuration that the
// client cares about.
type TensorConfig struct {
	Name string
}

// ModelMetadata is the transport-independent view of the server-reported
// model description. Both transports decode into this one value type.
type ModelMetadata struct {
	Name     string
	Versions []string
	Platform string
	Inputs   []TensorMetadata
	Outputs  []TensorMetadata
}

// ModelConfig carries the operational limits reported by the server.
type ModelConfig struct {
	Name         string
	Platform     string
	MaxBatchSize int32
	Input        []TensorConfig
	Output       []TensorConfig
}

// InferRequest describes one batched classification call.
type InferRequest struct {
	ModelName    string
	ModelVersion string
	Signature    ModelSignature
	ClassCount   int
	// Inputs holds one opaque byte blob per batched image, already in
	// request order.
	Inputs [][]byte
}

// InferResult is the decoded output tensor of one inference call: the
// server-reported shape plus the flattened BYTES elements.
type InferResult struct {
	Shape    []int64
	Contents []string
}

// Client is the capability interface over the two remote read operations
// and the single inference call this tool consumes. An implementation is
// picked once at startup based on the protocol flag.
type Client interface {
	IsServerReady(ctx context.Context) (bool, error)
	ModelMetadata(ctx context.Context, modelName string, modelVersion string) (*ModelMetadata, error)
	ModelConfig(ctx context.Context, modelName string, modelVersion string) (*ModelConfig, error)
	Infer(ctx context.Context, req *InferRequest) (*InferResult, error)
	Close() error
}

// Options tune the client. Zero values fall back to defaults.
type Options struct {
	Logger          *zap.Logger
	MetadataTimeout time.Duration
	InferTimeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.MetadataTimeout <= 0 {
		o.MetadataTimeout = 30 * time.Second
	}
	if o.InferTimeout <= 0 {
		o.InferTimeout = 60 * time.Second
	}
	return o
}

// NewClient opens a connection handle to the inference server over the
// chosen transport. The handle issues no network traffic until the first
// request.
func NewClient(protocol Protocol, url string, opts Options) (Client, error) {
	opts = opts.withDefaults()
	switch protocol {
	case ProtocolGRPC:
		return newGRPCClient(url, opts)
	case ProtocolHTTP:
		return newHTTPClient(url, opts)
	default:
		return nil, ErrUnsupportedProtocol
	}
}

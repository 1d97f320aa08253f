// Inspired from https://github.com/triton-inference-server/server/blob/v2.5.0/src/clients/go/grpc_simple_client.go

package inference

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	inferenceserver "github.com/sunhailin-Leo/triton-service-go/v2/nvidia_inferenceserver"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type grpcClient struct {
	client     inferenceserver.GRPCInferenceServiceClient
	connection *grpc.ClientConn
	logger     *zap.Logger
	opts       Options
}

func newGRPCClient(url string, opts Options) (*grpcClient, error) {
	// Connect to gRPC server
	conn, err := grpc.Dial(url, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to endpoint %s: %w", url, err)
	}

	// Create client from gRPC server connection
	return &grpcClient{
		client:     inferenceserver.NewGRPCInferenceServiceClient(conn),
		connection: conn,
		logger:     opts.Logger,
		opts:       opts,
	}, nil
}

func (c *grpcClient) Close() error {
	if c.connection != nil {
		return c.connection.Close()
	}
	return nil
}

func (c *grpcClient) IsServerReady(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.MetadataTimeout)
	defer cancel()

	liveResponse, err := c.client.ServerLive(ctx, &inferenceserver.ServerLiveRequest{})
	if err != nil {
		return false, err
	}
	c.logger.Debug("server health", zap.Bool("live", liveResponse.Live))
	if !liveResponse.Live {
		return false, nil
	}

	readyResponse, err := c.client.ServerReady(ctx, &inferenceserver.ServerReadyRequest{})
	if err != nil {
		return false, err
	}
	c.logger.Debug("server health", zap.Bool("ready", readyResponse.Ready))
	return readyResponse.Ready, nil
}

func (c *grpcClient) ModelMetadata(ctx context.Context, modelName string, modelVersion string) (*ModelMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.MetadataTimeout)
	defer cancel()

	// Create status request for a given model
	resp, err := c.client.ModelMetadata(ctx, &inferenceserver.ModelMetadataRequest{
		Name:    modelName,
		Version: modelVersion,
	})
	if err != nil {
		return nil, err
	}

	metadata := &ModelMetadata{
		Name:     resp.Name,
		Versions: resp.Versions,
		Platform: resp.Platform,
		Inputs:   make([]TensorMetadata, 0, len(resp.Inputs)),
		Outputs:  make([]TensorMetadata, 0, len(resp.Outputs)),
	}
	for _, in := range resp.Inputs {
		metadata.Inputs = append(metadata.Inputs, TensorMetadata{Name: in.Name, Datatype: in.Datatype, Shape: in.Shape})
	}
	for _, out := range resp.Outputs {
		metadata.Outputs = append(metadata.Outputs, TensorMetadata{Name: out.Name, Datatype: out.Datatype, Shape: out.Shape})
	}
	return metadata, nil
}

func (c *grpcClient) ModelConfig(ctx context.Context, modelName string, modelVersion string) (*ModelConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.MetadataTimeout)
	defer cancel()

	resp, err := c.client.ModelConfig(ctx, &inferenceserver.ModelConfigRequest{
		Name:    modelName,
		Version: modelVersion,
	})
	if err != nil {
		return nil, err
	}

	config := &ModelConfig{
		Name:         resp.Config.Name,
		Platform:     resp.Config.Platform,
		MaxBatchSize: resp.Config.MaxBatchSize,
		Input:        make([]TensorConfig, 0, len(resp.Config.Input)),
		Output:       make([]TensorConfig, 0, len(resp.Config.Output)),
	}
	for _, in := range resp.Config.Input {
		config.Input = append(config.Input, TensorConfig{Name: in.Name})
	}
	for _, out := range resp.Config.Output {
		config.Output = append(config.Output, TensorConfig{Name: out.Name})
	}
	return config, nil
}

func (c *grpcClient) Infer(ctx context.Context, req *InferRequest) (*InferResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.InferTimeout)
	defer cancel()

	requestID := uuid.Must(uuid.NewV4())
	batchSize := int64(len(req.Inputs))

	// Create request input tensors. The ensemble's raw-image input is a
	// BYTES tensor of shape [batch, 1].
	inferInputs := []*inferenceserver.ModelInferRequest_InferInputTensor{{
		Name:     req.Signature.InputName,
		Datatype: "BYTES",
		Shape:    []int64{batchSize, 1},
	}}

	// Request the top-N classes for the single output tensor.
	inferOutputs := []*inferenceserver.ModelInferRequest_InferRequestedOutputTensor{{
		Name: req.Signature.OutputName,
		Parameters: map[string]*inferenceserver.InferParameter{
			"classification": {
				ParameterChoice: &inferenceserver.InferParameter_Int64Param{
					Int64Param: int64(req.ClassCount),
				},
			},
		},
	}}

	// Create inference request for specific model/version
	inferRequest := inferenceserver.ModelInferRequest{
		Id:           requestID.String(),
		ModelName:    req.ModelName,
		ModelVersion: req.ModelVersion,
		Inputs:       inferInputs,
		Outputs:      inferOutputs,
	}
	inferRequest.RawInputContents = append(inferRequest.RawInputContents, SerializeBytesTensor(req.Inputs))

	// Submit inference request to server
	resp, err := c.client.ModelInfer(ctx, &inferRequest)
	if err != nil {
		return nil, err
	}

	output, rawContent, err := outputFromGRPCResponse(req.Signature.OutputName, resp)
	if err != nil {
		return nil, err
	}

	// Triton returns BYTES outputs through the raw contents; some servers
	// answer with typed tensor contents instead.
	if rawContent == nil && output.Contents != nil {
		contents := make([]string, 0, len(output.Contents.BytesContents))
		for _, b := range output.Contents.BytesContents {
			contents = append(contents, string(b))
		}
		return &InferResult{Shape: output.Shape, Contents: contents}, nil
	}

	contents, err := DeserializeBytesTensor(rawContent, elementCount(output.Shape))
	if err != nil {
		return nil, err
	}

	return &InferResult{Shape: output.Shape, Contents: contents}, nil
}

func outputFromGRPCResponse(name string, response *inferenceserver.ModelInferResponse) (*inferenceserver.ModelInferResponse_InferOutputTensor, []byte, error) {
	for idx, output := range response.Outputs {
		if output.Name == name {
			if len(response.RawOutputContents) > idx {
				return output, response.RawOutputContents[idx], nil
			}
			return output, nil, nil
		}
	}

	return nil, nil, fmt.Errorf("%w: %s", ErrOutputNotFound, name)
}

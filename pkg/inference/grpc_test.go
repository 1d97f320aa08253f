package inference

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	inferenceserver "github.com/sunhailin-Leo/triton-service-go/v2/nvidia_inferenceserver"
	"google.golang.org/grpc"
)

// fakeGRPCModelServer implements the slice of the GRPCInferenceService
// consumed by the gRPC client.
type fakeGRPCModelServer struct {
	inferenceserver.UnimplementedGRPCInferenceServiceServer

	t             *testing.T
	maxBatchSize  int32
	classes       [][]string // per received image, id:score:label entries
	typedContents bool       // answer with tensor contents instead of raw bytes
	inferCalls    int
	lastInfer     *inferenceserver.ModelInferRequest
}

func (s *fakeGRPCModelServer) ServerLive(ctx context.Context, req *inferenceserver.ServerLiveRequest) (*inferenceserver.ServerLiveResponse, error) {
	return &inferenceserver.ServerLiveResponse{Live: true}, nil
}

func (s *fakeGRPCModelServer) ServerReady(ctx context.Context, req *inferenceserver.ServerReadyRequest) (*inferenceserver.ServerReadyResponse, error) {
	return &inferenceserver.ServerReadyResponse{Ready: true}, nil
}

func (s *fakeGRPCModelServer) ModelMetadata(ctx context.Context, req *inferenceserver.ModelMetadataRequest) (*inferenceserver.ModelMetadataResponse, error) {
	return &inferenceserver.ModelMetadataResponse{
		Name:     req.Name,
		Platform: "ensemble",
		Inputs: []*inferenceserver.ModelMetadataResponse_TensorMetadata{
			{Name: "INPUT", Datatype: "BYTES", Shape: []int64{-1, 1}},
		},
		Outputs: []*inferenceserver.ModelMetadataResponse_TensorMetadata{
			{Name: "OUTPUT", Datatype: "BYTES", Shape: []int64{-1, 1}},
		},
	}, nil
}

func (s *fakeGRPCModelServer) ModelConfig(ctx context.Context, req *inferenceserver.ModelConfigRequest) (*inferenceserver.ModelConfigResponse, error) {
	return &inferenceserver.ModelConfigResponse{
		Config: &inferenceserver.ModelConfig{
			Name:         req.Name,
			Platform:     "ensemble",
			MaxBatchSize: s.maxBatchSize,
			Input:        []*inferenceserver.ModelInput{{Name: "INPUT"}},
			Output:       []*inferenceserver.ModelOutput{{Name: "OUTPUT"}},
		},
	}, nil
}

func (s *fakeGRPCModelServer) ModelInfer(ctx context.Context, req *inferenceserver.ModelInferRequest) (*inferenceserver.ModelInferResponse, error) {
	s.inferCalls++
	s.lastInfer = req

	require.Len(s.t, req.Inputs, 1)
	require.Len(s.t, req.Outputs, 1)
	require.Len(s.t, req.RawInputContents, 1)
	assert.Equal(s.t, "BYTES", req.Inputs[0].Datatype)

	images, err := DeserializeBytesTensor(req.RawInputContents[0], req.Inputs[0].Shape[0])
	require.NoError(s.t, err)
	require.Len(s.t, images, len(s.classes))

	classCount := len(s.classes[0])
	var entries [][]byte
	for _, perImage := range s.classes {
		for _, entry := range perImage {
			entries = append(entries, []byte(entry))
		}
	}

	output := &inferenceserver.ModelInferResponse_InferOutputTensor{
		Name:     req.Outputs[0].Name,
		Datatype: "BYTES",
		Shape:    []int64{int64(len(s.classes)), int64(classCount)},
	}
	resp := &inferenceserver.ModelInferResponse{
		ModelName: req.ModelName,
		Id:        req.Id,
		Outputs:   []*inferenceserver.ModelInferResponse_InferOutputTensor{output},
	}
	if s.typedContents {
		contents := &inferenceserver.InferTensorContents{}
		for _, entry := range entries {
			contents.BytesContents = append(contents.BytesContents, entry)
		}
		output.Contents = contents
	} else {
		resp.RawOutputContents = [][]byte{SerializeBytesTensor(entries)}
	}
	return resp, nil
}

func startGRPCModelServer(t *testing.T, fake *fakeGRPCModelServer) string {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	inferenceserver.RegisterGRPCInferenceServiceServer(srv, fake)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

func TestGRPCClient(t *testing.T) {
	fake := &fakeGRPCModelServer{
		t:            t,
		maxBatchSize: 8,
		classes: [][]string{
			{"281:0.42:tabby", "282:0.4:tiger cat"},
			{"250:0.83:siberian husky", "249:0.1:malamute"},
		},
	}
	addr := startGRPCModelServer(t, fake)

	client, err := NewClient(ProtocolGRPC, addr, Options{})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	ready, err := client.IsServerReady(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	metadata, err := client.ModelMetadata(ctx, "ensemble", "")
	require.NoError(t, err)
	assert.Equal(t, "ensemble", metadata.Name)
	require.Len(t, metadata.Inputs, 1)
	require.Len(t, metadata.Outputs, 1)

	config, err := client.ModelConfig(ctx, "ensemble", "")
	require.NoError(t, err)
	assert.Equal(t, int32(8), config.MaxBatchSize)
	require.Len(t, config.Input, 1)

	signature, err := ParseSignature(metadata, config)
	require.NoError(t, err)

	result, err := client.Infer(ctx, &InferRequest{
		ModelName:  "ensemble",
		Signature:  signature,
		ClassCount: 2,
		Inputs:     [][]byte{[]byte("cat bytes"), []byte("dog bytes")},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 2}, result.Shape)

	decoded, err := DecodeClassifications(result, 2)
	require.NoError(t, err)
	assert.Equal(t, "tabby", decoded[0][0].Label)
	assert.Equal(t, "malamute", decoded[1][1].Label)
	assert.Equal(t, 1, fake.inferCalls)

	require.NotNil(t, fake.lastInfer)
	assert.NotEmpty(t, fake.lastInfer.Id)
	assert.Equal(t, []int64{2, 1}, fake.lastInfer.Inputs[0].Shape)
	assert.Equal(t, int64(2), fake.lastInfer.Outputs[0].Parameters["classification"].GetInt64Param())
}

func TestGRPCClient_TypedContents(t *testing.T) {
	fake := &fakeGRPCModelServer{
		t:             t,
		maxBatchSize:  1,
		typedContents: true,
		classes:       [][]string{{"0:0.99:pelican"}},
	}
	addr := startGRPCModelServer(t, fake)

	client, err := NewClient(ProtocolGRPC, addr, Options{})
	require.NoError(t, err)
	defer client.Close()

	result, err := client.Infer(context.Background(), &InferRequest{
		ModelName:  "ensemble",
		Signature:  ModelSignature{InputName: "INPUT", OutputName: "OUTPUT", MaxBatchSize: 1},
		ClassCount: 1,
		Inputs:     [][]byte{[]byte("pelican bytes")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0:0.99:pelican"}, result.Contents)
}

// Both transports must decode identical inputs to identical printed
// classifications.
func TestGRPCClient_MatchesHTTPOutput(t *testing.T) {
	classes := [][]string{
		{"281:0.42:tabby", "282:0.4:tiger cat"},
		{"250:0.83:siberian husky", "249:0.1:malamute"},
	}
	inputs := [][]byte{[]byte("cat bytes"), []byte("dog bytes")}

	httpFake := &fakeModelServer{t: t, metadata: newTestMetadata(), config: newTestConfig(), classes: classes}
	httpSrv := httptest.NewServer(httpFake.handler())
	defer httpSrv.Close()

	grpcFake := &fakeGRPCModelServer{t: t, maxBatchSize: 8, classes: classes}
	grpcAddr := startGRPCModelServer(t, grpcFake)

	var printed [2][]string
	for i, tc := range []struct {
		protocol Protocol
		url      string
	}{
		{ProtocolHTTP, httpSrv.URL},
		{ProtocolGRPC, grpcAddr},
	} {
		client, err := NewClient(tc.protocol, tc.url, Options{})
		require.NoError(t, err)
		defer client.Close()

		ctx := context.Background()
		metadata, err := client.ModelMetadata(ctx, "ensemble", "")
		require.NoError(t, err)
		config, err := client.ModelConfig(ctx, "ensemble", "")
		require.NoError(t, err)
		signature, err := ParseSignature(metadata, config)
		require.NoError(t, err)

		result, err := client.Infer(ctx, &InferRequest{
			ModelName:  "ensemble",
			Signature:  signature,
			ClassCount: 2,
			Inputs:     inputs,
		})
		require.NoError(t, err)

		decoded, err := DecodeClassifications(result, len(inputs))
		require.NoError(t, err)
		for _, perImage := range decoded {
			for _, class := range perImage {
				printed[i] = append(printed[i], class.String())
			}
		}
	}

	assert.Equal(t, printed[0], printed[1])
}

func TestOutputFromGRPCResponse(t *testing.T) {
	resp := &inferenceserver.ModelInferResponse{
		Outputs: []*inferenceserver.ModelInferResponse_InferOutputTensor{
			{Name: "FIRST", Datatype: "BYTES", Shape: []int64{1, 1}},
			{Name: "SECOND", Datatype: "BYTES", Shape: []int64{1, 1}},
		},
		RawOutputContents: [][]byte{[]byte("first raw"), []byte("second raw")},
	}

	// Raw contents are consumed in declared output order.
	output, raw, err := outputFromGRPCResponse("SECOND", resp)
	require.NoError(t, err)
	assert.Equal(t, "SECOND", output.Name)
	assert.Equal(t, []byte("second raw"), raw)

	_, _, err = outputFromGRPCResponse("MISSING", resp)
	assert.ErrorIs(t, err, ErrOutputNotFound)

	// Fewer raw segments than outputs leaves the tail without raw data.
	resp.RawOutputContents = resp.RawOutputContents[:1]
	output, raw, err = outputFromGRPCResponse("SECOND", resp)
	require.NoError(t, err)
	assert.Equal(t, "SECOND", output.Name)
	assert.Nil(t, raw)
}

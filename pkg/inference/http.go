package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

const inferenceHeaderContentLength = "Inference-Header-Content-Length"

// httpClient interacts with the KServe v2 REST API. BYTES tensors travel
// through the binary extension: a JSON header followed by the raw tensor
// bytes, with the header size carried in Inference-Header-Content-Length.
type httpClient struct {
	rc   *resty.Client
	opts Options
}

func newHTTPClient(url string, opts Options) (*httpClient, error) {
	baseURL := url
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	rc := resty.New().
		SetLogger(opts.Logger.Sugar()).
		SetBaseURL(baseURL)

	return &httpClient{rc: rc, opts: opts}, nil
}

func (c *httpClient) Close() error {
	return nil
}

func (c *httpClient) IsServerReady(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.MetadataTimeout)
	defer cancel()

	live, err := c.rc.R().SetContext(ctx).Get("/v2/health/live")
	if err != nil {
		return false, err
	}
	c.opts.Logger.Debug("server health", zap.Bool("live", live.IsSuccess()))
	if !live.IsSuccess() {
		return false, nil
	}

	ready, err := c.rc.R().SetContext(ctx).Get("/v2/health/ready")
	if err != nil {
		return false, err
	}
	c.opts.Logger.Debug("server health", zap.Bool("ready", ready.IsSuccess()))
	return ready.IsSuccess(), nil
}

type httpTensorMetadata struct {
	Name     string  `json:"name"`
	Datatype string  `json:"datatype"`
	Shape    []int64 `json:"shape"`
}

type httpModelMetadata struct {
	Name     string               `json:"name"`
	Versions []string             `json:"versions"`
	Platform string               `json:"platform"`
	Inputs   []httpTensorMetadata `json:"inputs"`
	Outputs  []httpTensorMetadata `json:"outputs"`
}

func (c *httpClient) ModelMetadata(ctx context.Context, modelName string, modelVersion string) (*ModelMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.MetadataTimeout)
	defer cancel()

	var out httpModelMetadata
	resp, err := c.rc.R().SetContext(ctx).SetResult(&out).Get(modelPath(modelName, modelVersion))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("metadata request failed: %s", resp.Status())
	}

	metadata := &ModelMetadata{
		Name:     out.Name,
		Versions: out.Versions,
		Platform: out.Platform,
		Inputs:   make([]TensorMetadata, 0, len(out.Inputs)),
		Outputs:  make([]TensorMetadata, 0, len(out.Outputs)),
	}
	for _, in := range out.Inputs {
		metadata.Inputs = append(metadata.Inputs, TensorMetadata(in))
	}
	for _, o := range out.Outputs {
		metadata.Outputs = append(metadata.Outputs, TensorMetadata(o))
	}
	return metadata, nil
}

type httpModelConfig struct {
	Name         string `json:"name"`
	Platform     string `json:"platform"`
	MaxBatchSize int32  `json:"max_batch_size"`
	Input        []struct {
		Name string `json:"name"`
	} `json:"input"`
	Output []struct {
		Name string `json:"name"`
	} `json:"output"`
}

func (c *httpClient) ModelConfig(ctx context.Context, modelName string, modelVersion string) (*ModelConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.MetadataTimeout)
	defer cancel()

	var out httpModelConfig
	resp, err := c.rc.R().SetContext(ctx).SetResult(&out).Get(modelPath(modelName, modelVersion) + "/config")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("config request failed: %s", resp.Status())
	}

	config := &ModelConfig{
		Name:         out.Name,
		Platform:     out.Platform,
		MaxBatchSize: out.MaxBatchSize,
		Input:        make([]TensorConfig, 0, len(out.Input)),
		Output:       make([]TensorConfig, 0, len(out.Output)),
	}
	for _, in := range out.Input {
		config.Input = append(config.Input, TensorConfig{Name: in.Name})
	}
	for _, o := range out.Output {
		config.Output = append(config.Output, TensorConfig{Name: o.Name})
	}
	return config, nil
}

type httpInferInput struct {
	Name       string         `json:"name"`
	Shape      []int64        `json:"shape"`
	Datatype   string         `json:"datatype"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type httpRequestedOutput struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type httpInferRequest struct {
	ID      string                `json:"id,omitempty"`
	Inputs  []httpInferInput      `json:"inputs"`
	Outputs []httpRequestedOutput `json:"outputs,omitempty"`
}

type httpInferOutput struct {
	Name       string         `json:"name"`
	Datatype   string         `json:"datatype"`
	Shape      []int64        `json:"shape"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Data       []string       `json:"data,omitempty"`
}

type httpInferResponse struct {
	ModelName    string            `json:"model_name"`
	ModelVersion string            `json:"model_version"`
	ID           string            `json:"id,omitempty"`
	Outputs      []httpInferOutput `json:"outputs"`
}

func (c *httpClient) Infer(ctx context.Context, req *InferRequest) (*InferResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.InferTimeout)
	defer cancel()

	requestID := uuid.Must(uuid.NewV4())
	batchSize := int64(len(req.Inputs))
	rawInput := SerializeBytesTensor(req.Inputs)

	header, err := json.Marshal(httpInferRequest{
		ID: requestID.String(),
		Inputs: []httpInferInput{{
			Name:     req.Signature.InputName,
			Shape:    []int64{batchSize, 1},
			Datatype: "BYTES",
			Parameters: map[string]any{
				"binary_data_size": len(rawInput),
			},
		}},
		Outputs: []httpRequestedOutput{{
			Name: req.Signature.OutputName,
			Parameters: map[string]any{
				"classification": req.ClassCount,
				"binary_data":    true,
			},
		}},
	})
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, len(header)+len(rawInput))
	body = append(body, header...)
	body = append(body, rawInput...)

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetHeader(inferenceHeaderContentLength, strconv.Itoa(len(header))).
		SetBody(body).
		Post(modelPath(req.ModelName, req.ModelVersion) + "/infer")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("infer request failed: %s: %s", resp.Status(), resp.String())
	}

	return decodeHTTPInferResponse(resp.Header().Get(inferenceHeaderContentLength), resp.Body(), req.Signature.OutputName)
}

// decodeHTTPInferResponse splits a binary-extension response body into its
// JSON header and appended raw tensors, then extracts the named output.
func decodeHTTPInferResponse(headerLengthValue string, body []byte, outputName string) (*InferResult, error) {
	headerLength := len(body)
	if headerLengthValue != "" {
		n, err := strconv.Atoi(headerLengthValue)
		if err != nil || n < 0 || n > len(body) {
			return nil, fmt.Errorf("invalid %s header: %q", inferenceHeaderContentLength, headerLengthValue)
		}
		headerLength = n
	}

	var out httpInferResponse
	if err := json.Unmarshal(body[:headerLength], &out); err != nil {
		return nil, fmt.Errorf("couldn't decode inference response: %w", err)
	}

	// Binary output contents follow the JSON header in declared order.
	binary := body[headerLength:]
	for _, output := range out.Outputs {
		size, hasBinary, err := binaryDataSize(output.Parameters)
		if err != nil {
			return nil, err
		}

		var segment []byte
		if hasBinary {
			if size > len(binary) {
				return nil, fmt.Errorf("binary_data_size %d exceeds remaining %d body bytes", size, len(binary))
			}
			segment, binary = binary[:size], binary[size:]
		}

		if output.Name != outputName {
			continue
		}

		if !hasBinary {
			return &InferResult{Shape: output.Shape, Contents: output.Data}, nil
		}
		contents, err := DeserializeBytesTensor(segment, elementCount(output.Shape))
		if err != nil {
			return nil, err
		}
		return &InferResult{Shape: output.Shape, Contents: contents}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrOutputNotFound, outputName)
}

func binaryDataSize(parameters map[string]any) (int, bool, error) {
	v, ok := parameters["binary_data_size"]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), true, nil
	case json.Number:
		size, err := n.Int64()
		return int(size), true, err
	default:
		return 0, false, fmt.Errorf("invalid binary_data_size parameter: %v", v)
	}
}

func modelPath(modelName string, modelVersion string) string {
	if modelVersion != "" {
		return fmt.Sprintf("/v2/models/%s/versions/%s", modelName, modelVersion)
	}
	return "/v2/models/" + modelName
}

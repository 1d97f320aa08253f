package inference

import "fmt"

// ModelSignature is the validated triple the rest of the pipeline needs:
// the single input name, the single output name and the server-declared
// batch limit.
type ModelSignature struct {
	InputName    string
	OutputName   string
	MaxBatchSize int32
}

// Capacity returns the usable batch limit. Triton reports max_batch_size 0
// for models that do not support batching; those still accept one request.
func (s ModelSignature) Capacity() int {
	if s.MaxBatchSize < 1 {
		return 1
	}
	return int(s.MaxBatchSize)
}

// ParseSignature checks the metadata and configuration of a model to make
// sure it meets the requirements for an image classification network (as
// expected by this client) and extracts the properties needed to build the
// request.
func ParseSignature(metadata *ModelMetadata, config *ModelConfig) (ModelSignature, error) {
	if n := len(metadata.Inputs); n != 1 {
		return ModelSignature{}, fmt.Errorf("%w: expecting 1 input, got %d", ErrUnexpectedInputCount, n)
	}
	if n := len(metadata.Outputs); n != 1 {
		return ModelSignature{}, fmt.Errorf("%w: expecting 1 output, got %d", ErrUnexpectedOutputCount, n)
	}
	if n := len(config.Input); n != 1 {
		return ModelSignature{}, fmt.Errorf("%w: expecting 1 input in model configuration, got %d", ErrUnexpectedInputCount, n)
	}

	return ModelSignature{
		InputName:    metadata.Inputs[0].Name,
		OutputName:   metadata.Outputs[0].Name,
		MaxBatchSize: config.MaxBatchSize,
	}, nil
}

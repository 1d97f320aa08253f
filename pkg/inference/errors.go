package inference

import "errors"

var (
	// ErrUnsupportedProtocol is returned for protocol flag values other
	// than HTTP or gRPC.
	ErrUnsupportedProtocol = errors.New("unsupported protocol, expecting HTTP or gRPC")

	// ErrUnexpectedInputCount signals a model whose declared inputs do not
	// match what an image classification client expects.
	ErrUnexpectedInputCount = errors.New("unexpected model input count")

	// ErrUnexpectedOutputCount signals a model whose declared outputs do
	// not match what an image classification client expects.
	ErrUnexpectedOutputCount = errors.New("unexpected model output count")

	// ErrOutputNotFound is returned when the response carries no tensor
	// with the requested output name.
	ErrOutputNotFound = errors.New("unable to find inference output")

	// ErrResultCountMismatch signals that the server returned results for
	// a different number of images than the batch sent.
	ErrResultCountMismatch = errors.New("result count does not match batch size")

	// ErrMalformedClass is returned when an output element is not an
	// id:score:label triple.
	ErrMalformedClass = errors.New("malformed classification entry")
)

package inference

import (
	"fmt"
	"strings"
)

// Classification is one decoded id:score:label triple. Fields stay as the
// server formatted them so printed output is byte-identical across
// transports.
type Classification struct {
	ClassID string
	Score   string
	Label   string
}

func (c Classification) String() string {
	return fmt.Sprintf("%s (%s) = %s", c.ClassID, c.Score, c.Label)
}

// DecodeClassifications turns the output tensor of one inference call into
// per-image classification lists. It fails when the server returned
// results for a different number of images than the batch sent, which
// signals a protocol mismatch rather than a recoverable condition.
func DecodeClassifications(res *InferResult, batchSize int) ([][]Classification, error) {
	shape := res.Shape
	var rows, cols int64
	switch len(shape) {
	case 1:
		rows, cols = shape[0], 1
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}

	if int(rows) != batchSize {
		return nil, fmt.Errorf("%w: expected %d results, got %d", ErrResultCountMismatch, batchSize, rows)
	}
	if int64(len(res.Contents)) != rows*cols {
		return nil, fmt.Errorf("%w: shape %v holds %d elements, got %d", ErrResultCountMismatch, shape, rows*cols, len(res.Contents))
	}

	grid, err := Reshape1DArrayStringTo2D(res.Contents, []int64{rows, cols})
	if err != nil {
		return nil, err
	}

	out := make([][]Classification, 0, len(grid))
	for _, row := range grid {
		classes := make([]Classification, 0, len(row))
		for _, entry := range row {
			// The label itself may contain colons, keep it whole.
			parts := strings.SplitN(entry, ":", 3)
			if len(parts) != 3 {
				return nil, fmt.Errorf("%w: %q", ErrMalformedClass, entry)
			}
			classes = append(classes, Classification{
				ClassID: parts[0],
				Score:   parts[1],
				Label:   parts[2],
			})
		}
		out = append(out, classes)
	}

	return out, nil
}

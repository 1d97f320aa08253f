package inference

import (
	"encoding/binary"
	"fmt"
)

// SerializeBytesTensor flattens a batch of opaque byte blobs into the wire
// representation of a BYTES tensor: each element is prepended with its
// 4-byte little-endian length.
// https://github.com/triton-inference-server/server/issues/1100
func SerializeBytesTensor(tensor [][]byte) []byte {
	if len(tensor) == 0 {
		return []byte{}
	}

	// Add capacity to avoid memory re-allocation
	res := make([]byte, 0, len(tensor)*(4+len(tensor[0])))
	for _, t := range tensor { // loop over batch
		length := make([]byte, 4)
		binary.LittleEndian.PutUint32(length, uint32(len(t)))
		res = append(res, length...)
		res = append(res, t...)
	}

	return res
}

// DeserializeBytesTensor splits a length-framed BYTES tensor back into its
// string elements. capacity is a size hint, usually the product of the
// tensor shape.
func DeserializeBytesTensor(encodedTensor []byte, capacity int64) ([]string, error) {
	arr := make([]string, 0, capacity)
	for i := 0; i < len(encodedTensor); {
		if i+4 > len(encodedTensor) {
			return nil, fmt.Errorf("truncated BYTES tensor: %d trailing bytes", len(encodedTensor)-i)
		}
		length := int(binary.LittleEndian.Uint32(encodedTensor[i : i+4]))
		i += 4
		if i+length > len(encodedTensor) {
			return nil, fmt.Errorf("truncated BYTES tensor: element of length %d exceeds remaining %d bytes", length, len(encodedTensor)-i)
		}
		arr = append(arr, string(encodedTensor[i:i+length]))
		i += length
	}
	return arr, nil
}

// Reshape1DArrayStringTo2D views a flattened tensor as rows of shape[1]
// elements.
func Reshape1DArrayStringTo2D(array []string, shape []int64) ([][]string, error) {
	if len(array) == 0 {
		return [][]string{}, nil
	}

	if len(shape) != 2 {
		return nil, fmt.Errorf("expected a 2D shape, got %vD shape %v", len(shape), shape)
	}

	var prod int64 = 1
	for _, s := range shape {
		prod *= s
	}
	if prod != int64(len(array)) {
		return nil, fmt.Errorf("cannot reshape array of length %v into shape %v", len(array), shape)
	}

	res := make([][]string, shape[0])
	for i := int64(0); i < shape[0]; i++ {
		res[i] = array[i*shape[1] : (i+1)*shape[1]]
	}

	return res, nil
}

func elementCount(shape []int64) int64 {
	var prod int64 = 1
	for _, s := range shape {
		prod *= s
	}
	return prod
}

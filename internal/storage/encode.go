package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
)

// Tensors are stored as row-major float64 little-endian blobs with the shape
// kept in separate columns.

func encodeVector(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("%w: blob length %d is not a multiple of 8", common.ErrInvalidConfig, len(blob))
	}
	vals := make([]float64, len(blob)/8)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return vals, nil
}

func encodeMatrix(m *mat.Dense) []byte {
	r, c := m.Dims()
	vals := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		vals = append(vals, m.RawRowView(i)...)
	}
	return encodeVector(vals)
}

func decodeMatrix(r, c int, blob []byte) (*mat.Dense, error) {
	vals, err := decodeVector(blob)
	if err != nil {
		return nil, err
	}
	if len(vals) != r*c {
		return nil, fmt.Errorf("%w: got %d values for %dx%d tensor", common.ErrDimensionMismatch, len(vals), r, c)
	}
	return mat.NewDense(r, c, vals), nil
}

func vecAsDense(v *mat.VecDense) *mat.Dense {
	out := mat.NewDense(v.Len(), 1, nil)
	for i := 0; i < v.Len(); i++ {
		out.Set(i, 0, v.AtVec(i))
	}
	return out
}

func denseAsVec(m *mat.Dense) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}

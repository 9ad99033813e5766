//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errONNXUnavailable = errors.New("onnx provider requires CGO; build with CGO_ENABLED=1 and the onnxruntime library")

// ONNXProvider stub when built without CGO (see onnx.go for the real one).
// The constructor always fails; the methods exist so the type satisfies
// Provider in both build modes.
type ONNXProvider struct{}

// NewONNXProvider returns an error when built without CGO.
func NewONNXProvider(_ string, _, _ int) (*ONNXProvider, error) {
	return nil, errONNXUnavailable
}

// Embed always fails on the stub.
func (p *ONNXProvider) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errONNXUnavailable
}

// Dimensions returns 0 on the stub.
func (p *ONNXProvider) Dimensions() int {
	return 0
}

// Close is a no-op on the stub.
func (p *ONNXProvider) Close() error {
	return nil
}

package store

import (
	"fmt"
	"io"
	"testing"
)

func TestIsCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     RetCode
		expected bool
	}{
		{name: "nil", err: nil, code: RetCLoadIO, expected: false},
		{name: "plain error", err: io.EOF, code: RetCLoadIO, expected: false},
		{name: "same code", err: NewError(RetCEncode, "bad"), code: RetCEncode, expected: true},
		{name: "other code", err: NewError(RetCEncode, "bad"), code: RetCLoadIO, expected: false},
		{name: "wrapped", err: fmt.Errorf("ctx: %w", NewError(RetCDirectory, "mkdir")), code: RetCDirectory, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCode(tt.err, tt.code); got != tt.expected {
				t.Errorf("IsCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := WrapError(RetCLoadIO, io.ErrUnexpectedEOF, "failed to read metadata of layer a")

	if err.Unwrap() != io.ErrUnexpectedEOF {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), io.ErrUnexpectedEOF)
	}

	expected := "LayerMetadataError (code LoadIO): failed to read metadata of layer a: unexpected EOF"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestRequest_ToRawInput(t *testing.T) {
	tests := []struct {
		name string
		req  IngestRequest
		want RawInput
	}{
		{
			name: "explicit_fields",
			req:  IngestRequest{Text: "milk carton"},
			want: RawInput{Text: "milk carton"},
		},
		{
			name: "input_data_url",
			req:  IngestRequest{InputData: "https://example.com/bill.jpg"},
			want: RawInput{ImageURL: "https://example.com/bill.jpg"},
		},
		{
			name: "input_data_data_url",
			req:  IngestRequest{InputData: "data:image/png;base64,aGVsbG8="},
			want: RawInput{ImageBase64: "data:image/png;base64,aGVsbG8="},
		},
		{
			name: "input_data_text",
			req:  IngestRequest{InputData: "factura de luz edesur"},
			want: RawInput{Text: "factura de luz edesur"},
		},
		{
			name: "input_data_never_overrides",
			req:  IngestRequest{InputData: "https://example.com/a.jpg", ImageURL: "https://example.com/b.jpg"},
			want: RawInput{ImageURL: "https://example.com/b.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.ToRawInput())
		})
	}
}

func TestIngestRequest_HasInput(t *testing.T) {
	assert.False(t, IngestRequest{}.HasInput())
	assert.False(t, IngestRequest{Metadata: map[string]string{"k": "v"}}.HasInput())
	assert.True(t, IngestRequest{Text: "x"}.HasInput())
	assert.True(t, IngestRequest{InputData: "x"}.HasInput())
}

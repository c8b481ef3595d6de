package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/fees/feeDetails/abc/2024-05", "/api/fees/feeDetails"},
		{"api/batches/getAllBatches", "/api/batches/getAllBatches"},
		{"/api/fees/generateInvoice/s1?month=2024-05", "/api/fees/generateInvoice"},
		{"/auth/google", "/auth/google"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.path))
		})
	}
}

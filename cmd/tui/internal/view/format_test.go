package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBar(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		want    string
	}{
		{"Empty", 0, "░░░░░░░░░░"},
		{"Half", 50, "█████░░░░░"},
		{"Full", 100, "██████████"},
		{"Overflow", 250, "██████████"},
		{"Negative", -5, "░░░░░░░░░░"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bar(tt.percent, 10))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "Rp1.500.000", FormatAmount(1_500_000))
}

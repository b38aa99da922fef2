package models

import "testing"

func TestAmountFromMinorUnits(t *testing.T) {
	tests := []struct {
		minor int64
		want  float64
	}{
		{minor: 0, want: 0},
		{minor: 100, want: 1},
		{minor: 2900, want: 29},
		{minor: 2999, want: 29.99},
		{minor: 1, want: 0.01},
	}

	for _, tt := range tests {
		if got := AmountFromMinorUnits(tt.minor); got != tt.want {
			t.Fatalf("AmountFromMinorUnits(%d) = %v, want %v", tt.minor, got, tt.want)
		}
	}
}

func TestFormattedAmount(t *testing.T) {
	p := &Payment{Amount: 29.5, Currency: "usd"}
	if got := p.FormattedAmount(); got != "USD 29.50" {
		t.Fatalf("FormattedAmount() = %q", got)
	}
}

package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/botboard/internal/domain"
)

func history(totals ...float64) []domain.Snapshot {
	out := make([]domain.Snapshot, 0, len(totals))
	for _, t := range totals {
		out = append(out, domain.Snapshot{TS: "2025-03-04 10:15:00", TotalMoney: t})
	}
	return out
}

func drawdowns(s Series) []float64 {
	out := make([]float64, 0, len(s.Rows))
	for _, r := range s.Rows {
		out = append(out, r.Drawdown)
	}
	return out
}

func TestDerive_Drawdown(t *testing.T) {
	tests := []struct {
		name      string
		totals    []float64
		wantDD    []float64
		wantMaxDD float64
	}{
		{
			name:      "peak then decline",
			totals:    []float64{100, 120, 90},
			wantDD:    []float64{0, 0, -25},
			wantMaxDD: -25,
		},
		{
			name:      "recovery keeps the deepest point",
			totals:    []float64{200, 150, 210, 189},
			wantDD:    []float64{0, -25, 0, -10},
			wantMaxDD: -25,
		},
		{
			name:      "zero totals keep drawdown at zero",
			totals:    []float64{0, 0},
			wantDD:    []float64{0, 0},
			wantMaxDD: 0,
		},
		{
			name:      "empty history",
			totals:    nil,
			wantDD:    []float64{},
			wantMaxDD: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Derive(history(tt.totals...))
			assert.Equal(t, tt.wantDD, drawdowns(s))
			assert.Equal(t, tt.wantMaxDD, s.MaxDrawdown)
		})
	}
}

func TestDerive_CumulativeReturn(t *testing.T) {
	tests := []struct {
		name   string
		totals []float64
		want   float64
	}{
		{name: "two points", totals: []float64{100, 150}, want: 50},
		{name: "loss", totals: []float64{200, 150, 100}, want: -50},
		{name: "single point", totals: []float64{100}, want: 0},
		{name: "empty", totals: nil, want: 0},
		{name: "non-positive first total", totals: []float64{0, 150}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(history(tt.totals...)).CumulativeReturn)
		})
	}
}

func TestDerive_RowFields(t *testing.T) {
	s := Derive([]domain.Snapshot{{TS: "2025-03-04 10:15:00", TotalMoney: 10, ExposureRate: 0.5, InvestCnt: 3}})
	assert.Equal(t, []Row{{Label: "03-04 10:15", Total: 10, Drawdown: 0, Exposure: 0.5, Invest: 3}}, s.Rows)
}

func TestShortLabel(t *testing.T) {
	assert.Equal(t, "03-04 10:15", shortLabel("2025-03-04 10:15:00"))
	assert.Equal(t, "03-04", shortLabel("2025-03-04"))
	assert.Equal(t, "", shortLabel("2025"))
}

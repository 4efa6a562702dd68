// Package dashboard is the monitoring client: it polls the query endpoint, derives
// drawdown and return series from the snapshot history and renders them.
package dashboard

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/botboard/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Row is one chart point derived from a history snapshot.
type Row struct {
	Label    string  `json:"ts"`
	Total    float64 `json:"total"`
	Drawdown float64 `json:"dd"`
	Exposure float64 `json:"exposure"`
	Invest   int     `json:"invest"`
}

// Series is the derived view of a snapshot history.
type Series struct {
	Rows []Row
	// CumulativeReturn is the percent change from the first to the last total, 0 with
	// fewer than two points or a non-positive first total.
	CumulativeReturn float64
	// MaxDrawdown is the most negative drawdown percent, 0 for an empty history.
	MaxDrawdown float64
}

// Derive computes chart rows, cumulative return and max drawdown from history in arrival order.
// The high-water mark starts at 0 and only ever rises.
func Derive(history []domain.Snapshot) Series {
	rows := make([]Row, 0, len(history))

	hwm := decimal.Zero
	maxDD := decimal.Zero
	for i, s := range history {
		total := decimal.NewFromFloat(s.TotalMoney)
		hwm = decimal.Max(hwm, total)

		dd := decimal.Zero
		if hwm.IsPositive() {
			dd = total.Div(hwm).Sub(decimal.NewFromInt(1)).Mul(hundred)
		}
		if i == 0 || dd.LessThan(maxDD) {
			maxDD = dd
		}

		rows = append(rows, Row{
			Label:    shortLabel(s.TS),
			Total:    s.TotalMoney,
			Drawdown: dd.InexactFloat64(),
			Exposure: s.ExposureRate,
			Invest:   s.InvestCnt,
		})
	}

	return Series{
		Rows:             rows,
		CumulativeReturn: cumulativeReturn(history).InexactFloat64(),
		MaxDrawdown:      maxDD.InexactFloat64(),
	}
}

func cumulativeReturn(history []domain.Snapshot) decimal.Decimal {
	if len(history) < 2 {
		return decimal.Zero
	}
	first := decimal.NewFromFloat(history[0].TotalMoney)
	last := decimal.NewFromFloat(history[len(history)-1].TotalMoney)
	if !first.IsPositive() {
		return decimal.Zero
	}
	return last.Div(first).Sub(decimal.NewFromInt(1)).Mul(hundred)
}

// shortLabel trims "2025-03-04 10:15:00" to "03-04 10:15".
func shortLabel(ts string) string {
	if len(ts) <= 5 {
		return ""
	}
	end := 16
	if len(ts) < end {
		end = len(ts)
	}
	return ts[5:end]
}

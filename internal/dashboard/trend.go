package dashboard

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// DefaultTrendPeriod is the EMA period used for the equity trend line.
const DefaultTrendPeriod = 20

// EquityEMA returns the exponential moving average of the row totals, aligned to the tail
// of rows (the indicator skips its warm-up period). Nil when there are fewer than period rows.
func EquityEMA(rows []Row, period int) []float64 {
	if period <= 0 || len(rows) < period {
		return nil
	}

	totals := make([]float64, len(rows))
	for i, r := range rows {
		totals[i] = r.Total
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	return helper.ChanToSlice(ema.Compute(helper.SliceToChan(totals)))
}

// TrendDirection compares the last total with the last EMA value: 1 above, -1 below, 0 when
// equal or when the EMA is not available yet.
func TrendDirection(rows []Row, period int) int {
	ema := EquityEMA(rows, period)
	if len(ema) == 0 {
		return 0
	}
	last := rows[len(rows)-1].Total
	switch e := ema[len(ema)-1]; {
	case last > e:
		return 1
	case last < e:
		return -1
	default:
		return 0
	}
}

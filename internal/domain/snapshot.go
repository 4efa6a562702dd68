package domain

import "time"

// AccountMode is the brokerage account the bot trades on.
type AccountMode string

const (
	AccountModeReal    AccountMode = "REAL"
	AccountModeVirtual AccountMode = "VIRTUAL"
)

// Snapshot is a point-in-time account state pushed by the bot.
// TS is kept as the bot formats it (local exchange time, "2006-01-02 15:04:05").
type Snapshot struct {
	TS           string      `json:"ts" csv:"ts"`
	AccountMode  AccountMode `json:"account_mode" csv:"account_mode"`
	MarketOpen   bool        `json:"market_open" csv:"market_open"`
	TotalMoney   float64     `json:"total_money" csv:"total_money"`
	StockMoney   float64     `json:"stock_money" csv:"stock_money"`
	RemainMoney  float64     `json:"remain_money" csv:"remain_money"`
	StockRevenue float64     `json:"stock_revenue" csv:"stock_revenue"`
	InvestCnt    int         `json:"invest_cnt" csv:"invest_cnt"`
	IsCut        bool        `json:"is_cut" csv:"is_cut"`
	CutCnt       int         `json:"cut_cnt" csv:"cut_cnt"`
	ExposureRate float64     `json:"exposure_rate" csv:"exposure_rate"`
	PeakMoney    float64     `json:"peak_money" csv:"peak_money"`
}

// TSLayout is the timestamp layout the bot writes.
const TSLayout = "2006-01-02 15:04:05"

// Time parses TS in loc (the bot's timezone). RFC 3339 timestamps are accepted as well.
func (s Snapshot) Time(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(TSLayout, s.TS, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s.TS); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// SnapshotRecord bundles a snapshot with the journal index it was written at.
type SnapshotRecord struct {
	Index    uint64
	Snapshot Snapshot
}

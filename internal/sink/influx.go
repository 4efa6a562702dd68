// Package sink mirrors ingested snapshots into secondary systems.
package sink

import (
	"context"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/domain"
)

const measurement = "account_snapshots"

// InfluxConfig holds the connection settings of the InfluxDB 1.x server.
type InfluxConfig struct {
	URL      string
	User     string
	Password string
	Database string
	Location *time.Location
}

type pointWriter interface {
	Write(bp client.BatchPoints) error
	Close() error
}

// Influx writes every snapshot as one point into InfluxDB.
type Influx struct {
	w        pointWriter
	database string
	loc      *time.Location
	now      func() time.Time
}

// NewInflux connects to InfluxDB over HTTP.
func NewInflux(cfg InfluxConfig) (*Influx, error) {
	if cfg.URL == "" {
		return nil, errors.New("influx url is required")
	}
	if cfg.Database == "" {
		cfg.Database = "botboard"
	}

	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.URL,
		Username: cfg.User,
		Password: cfg.Password,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create influx client")
	}
	return newInflux(c, cfg.Database, cfg.Location), nil
}

func newInflux(w pointWriter, database string, loc *time.Location) *Influx {
	return &Influx{w: w, database: database, loc: loc, now: time.Now}
}

// Record writes the snapshot. The point time is the snapshot timestamp when it parses,
// the ingest time otherwise.
func (i *Influx) Record(_ context.Context, s domain.Snapshot) error {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  i.database,
		Precision: "s",
	})
	if err != nil {
		return errors.Wrap(err, "create influx batch")
	}

	at, ok := s.Time(i.loc)
	if !ok {
		at = i.now()
	}

	pt, err := client.NewPoint(measurement, Tags(s), Fields(s), at)
	if err != nil {
		return errors.Wrap(err, "create influx point")
	}
	bp.AddPoint(pt)

	return errors.Wrap(i.w.Write(bp), "write influx point")
}

// Close closes the HTTP client.
func (i *Influx) Close() error {
	return i.w.Close()
}

// Tags are the indexed dimensions of a snapshot point.
func Tags(s domain.Snapshot) map[string]string {
	return map[string]string{"account_mode": string(s.AccountMode)}
}

// Fields are the values of a snapshot point.
func Fields(s domain.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"market_open":   s.MarketOpen,
		"total_money":   s.TotalMoney,
		"stock_money":   s.StockMoney,
		"remain_money":  s.RemainMoney,
		"stock_revenue": s.StockRevenue,
		"invest_cnt":    s.InvestCnt,
		"is_cut":        s.IsCut,
		"cut_cnt":       s.CutCnt,
		"exposure_rate": s.ExposureRate,
		"peak_money":    s.PeakMoney,
	}
}

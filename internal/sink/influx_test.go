package sink

import (
	"context"
	"testing"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/botboard/internal/domain"
)

type fakeWriter struct {
	batches []client.BatchPoints
	err     error
}

func (f *fakeWriter) Write(bp client.BatchPoints) error {
	f.batches = append(f.batches, bp)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestInflux_Record(t *testing.T) {
	w := &fakeWriter{}
	kst := time.FixedZone("KST", 9*60*60)
	sink := newInflux(w, "dash", kst)

	err := sink.Record(context.Background(), domain.Snapshot{
		TS:          "2025-03-04 10:15:00",
		AccountMode: domain.AccountModeVirtual,
		TotalMoney:  1000,
		InvestCnt:   2,
	})
	require.NoError(t, err)
	require.Len(t, w.batches, 1)

	bp := w.batches[0]
	assert.Equal(t, "dash", bp.Database())
	require.Len(t, bp.Points(), 1)

	pt := bp.Points()[0]
	assert.Equal(t, measurement, pt.Name())
	assert.Equal(t, "VIRTUAL", pt.Tags()["account_mode"])
	assert.Equal(t, time.Date(2025, 3, 4, 1, 15, 0, 0, time.UTC), pt.Time().UTC())

	fields, err := pt.Fields()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, fields["total_money"])
}

func TestInflux_RecordUsesNowForUnparsableTS(t *testing.T) {
	w := &fakeWriter{}
	sink := newInflux(w, "dash", time.UTC)
	fixed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return fixed }

	require.NoError(t, sink.Record(context.Background(), domain.Snapshot{TS: "n/a"}))
	assert.Equal(t, fixed, w.batches[0].Points()[0].Time().UTC())
}

func TestInflux_RecordPropagatesWriteError(t *testing.T) {
	sink := newInflux(&fakeWriter{err: errors.New("influx down")}, "dash", time.UTC)
	err := sink.Record(context.Background(), domain.Snapshot{TS: "2025-03-04 10:15:00"})
	assert.ErrorContains(t, err, "influx down")
}

func TestNewInflux_RequiresURL(t *testing.T) {
	_, err := NewInflux(InfluxConfig{})
	assert.Error(t, err)
}

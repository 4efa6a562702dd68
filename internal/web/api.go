package web

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"github.com/vadiminshakov/botboard/internal/domain"
	"go.uber.org/zap"
)

func (s *Server) handleData(c *gin.Context) {
	data, err := s.repo.Load(c.Request.Context())
	if err != nil {
		s.metrics.queries.WithLabelValues("error").Inc()
		s.l.Error("load dashboard data", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":      false,
			"latest":  nil,
			"history": []domain.Snapshot{},
			"error":   err.Error(),
		})
		return
	}

	s.metrics.queries.WithLabelValues("ok").Inc()
	s.metrics.history.Set(float64(len(data.History)))
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"latest":  data.Latest,
		"history": data.History,
	})
}

func (s *Server) handleIngest(c *gin.Context) {
	if !s.authorized(c.GetHeader(tokenHeader)) {
		s.metrics.ingests.WithLabelValues("unauthorized").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBody)
	var payload domain.DashboardPayload
	if err := c.ShouldBindJSON(&payload); err != nil || !payload.Valid() {
		s.metrics.ingests.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid payload"})
		return
	}

	ctx := c.Request.Context()
	if err := s.repo.Save(ctx, payload); err != nil {
		s.metrics.ingests.WithLabelValues("error").Inc()
		s.l.Error("save payload", zap.String("ts", payload.Snapshot.TS), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	for _, sink := range s.sinks {
		if err := sink.Record(ctx, payload.Snapshot); err != nil {
			name := sinkName(sink)
			s.metrics.sinkErrors.WithLabelValues(name).Inc()
			s.l.Warn("snapshot sink failed", zap.String("sink", name), zap.Error(err))
		}
	}

	s.metrics.ingests.WithLabelValues("ok").Inc()
	s.l.Debug("snapshot ingested",
		zap.String("ts", payload.Snapshot.TS),
		zap.Float64("total_money", payload.Snapshot.TotalMoney),
	)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) authorized(got string) bool {
	if s.token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

func (s *Server) handleHistoryCSV(c *gin.Context) {
	data, err := s.repo.Load(c.Request.Context())
	if err != nil {
		s.l.Error("load history for csv", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	history := data.History
	if history == nil {
		history = []domain.Snapshot{}
	}
	body, err := gocsv.MarshalBytes(&history)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="history.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"sinks":  len(s.sinks),
		"stream": s.stream != nil,
	})
}

// sinkName labels a sink by its type, e.g. "sink.Influx".
func sinkName(sink SnapshotSink) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", sink), "*")
}

package service

import "time"

const (
	alertStreamName   = "ALERTS"
	alertSubjects     = "alert.>"
	alertIngestSubj   = "alert.ingest"
	alertReceivedSubj = "alert.received"
	alertStatsSubj    = "alert.stats"

	metricsStreamName = "METRICS"
	metricsSubjects   = "metrics.>"
	systemStatsSubj   = "metrics.system"

	ingestConsumer = "alert-ingest-consumer"

	streamMaxAge  = 24 * time.Hour
	streamMaxMsgs = -1
)

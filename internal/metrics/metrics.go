package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billsb_api_requests_total",
			Help: "Mock API requests by route and status code",
		},
		[]string{"route", "code"},
	)

	RowsUpsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billsb_rows_upserted_total",
			Help: "Rows written by the loader by entity and target store",
		},
		[]string{"entity", "target"}, // customers|subscriptions|charges|invoices , postgres|mysql|sqlite|clickhouse
	)

	EnvelopesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billsb_envelopes_total",
			Help: "Kafka record envelopes by stage and record type",
		},
		[]string{"stage", "type"}, // published|consumed|flushed|failed
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		APIRequestsTotal,
		RowsUpsertedTotal,
		EnvelopesTotal,
	)
}

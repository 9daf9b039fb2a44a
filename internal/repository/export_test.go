package repository

import "github.com/prometheus/client_golang/prometheus"

func (m *Metrics) Operations() *prometheus.CounterVec { return m.operations }

package repository

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"refman/internal/model"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Metrics counts repository operations per backend.
type Metrics struct {
	operations *prometheus.CounterVec
}

// NewMetrics creates and registers the repository counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refman_repository_operations_total",
				Help: "Total number of repository operations by backend, operation and outcome.",
			},
			[]string{"backend", "operation", "outcome"},
		),
	}
	if err := reg.Register(m.operations); err != nil {
		return nil, err
	}
	return m, nil
}

// Instrument wraps next so every call is counted under the given backend label.
// A nil Metrics returns next unchanged.
func Instrument(next ReferenceRepository, backend string, m *Metrics) ReferenceRepository {
	if m == nil {
		return next
	}
	return &instrumented{next: next, backend: backend, m: m}
}

type instrumented struct {
	next    ReferenceRepository
	backend string
	m       *Metrics
}

var _ ReferenceRepository = (*instrumented)(nil)

func (r *instrumented) observe(op string, found bool, err error) {
	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = OutcomeError
	case !found:
		outcome = OutcomeMiss
	}
	r.m.operations.WithLabelValues(r.backend, op, outcome).Inc()
}

func (r *instrumented) ListAll(ctx context.Context) ([]model.Reference, error) {
	refs, err := r.next.ListAll(ctx)
	r.observe("list_all", true, err)
	return refs, err
}

func (r *instrumented) Get(ctx context.Context, id string) (*model.Reference, error) {
	ref, err := r.next.Get(ctx, id)
	r.observe("get", ref != nil, err)
	return ref, err
}

func (r *instrumented) Add(ctx context.Context, ref model.Reference) (*model.Reference, error) {
	out, err := r.next.Add(ctx, ref)
	r.observe("add", true, err)
	return out, err
}

func (r *instrumented) Update(ctx context.Context, id string, changes model.ReferenceChanges) (*model.Reference, error) {
	out, err := r.next.Update(ctx, id, changes)
	r.observe("update", out != nil, err)
	return out, err
}

func (r *instrumented) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := r.next.Delete(ctx, id)
	r.observe("delete", ok, err)
	return ok, err
}

func (r *instrumented) ImportBulk(ctx context.Context, entries []model.Reference, merge bool) (int, error) {
	n, err := r.next.ImportBulk(ctx, entries, merge)
	r.observe("import_bulk", true, err)
	return n, err
}

func (r *instrumented) ExportAll(ctx context.Context, w io.Writer) (int, error) {
	n, err := r.next.ExportAll(ctx, w)
	r.observe("export_all", true, err)
	return n, err
}

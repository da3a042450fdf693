package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"cascade-lab/internal/config"
	"cascade-lab/internal/domain"
	"cascade-lab/internal/observability"
	"cascade-lab/internal/pubsub"
	"cascade-lab/internal/risk"
	"cascade-lab/internal/storage"
	"cascade-lab/internal/velocity"
)

// correlationWindowSeconds is the lookback used for the cross-exchange
// matrix on the live path.
const correlationWindowSeconds = 30.0

// Manager drives the live detection loop: every feed event updates the
// velocity engine, is assessed for cascade risk, published at ALERT and
// above, and batched into the liquidation store.
//
// When the inbound queue is deeper than the configured threshold the
// manager switches to coarse snapshots (60s window only, no correlation)
// until the backlog drains.
type Manager struct {
	engine      *velocity.Engine
	calc        *risk.Calculator
	broadcaster pubsub.Broadcaster
	store       storage.LiquidationStore

	cfg    config.EngineConfig
	writer config.ClickHouseWriterConfig
	log    logrus.FieldLogger
	now    func() time.Time

	queue chan *domain.LiquidationEvent
	batch []*domain.LiquidationEvent
}

// ManagerOptions contains the manager's collaborators. Broadcaster and
// Store may be nil; the corresponding step is skipped.
type ManagerOptions struct {
	Engine      *velocity.Engine
	Calculator  *risk.Calculator
	Broadcaster pubsub.Broadcaster
	Store       storage.LiquidationStore

	EngineConfig config.EngineConfig
	WriterConfig config.ClickHouseWriterConfig
	Logger       logrus.FieldLogger
}

// NewManager creates a manager from the options.
func NewManager(opts ManagerOptions) *Manager {
	broadcaster := opts.Broadcaster
	if broadcaster == nil {
		broadcaster = pubsub.Noop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	queueDepth := opts.EngineConfig.DegradedQueueDepth * 2
	if queueDepth <= 0 {
		queueDepth = 1024
	}

	return &Manager{
		engine:      opts.Engine,
		calc:        opts.Calculator,
		broadcaster: broadcaster,
		store:       opts.Store,
		cfg:         opts.EngineConfig,
		writer:      opts.WriterConfig,
		log:         logger.WithField("component", "ingestion"),
		now:         time.Now,
		queue:       make(chan *domain.LiquidationEvent, queueDepth),
	}
}

// WithClock overrides the manager's time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Run consumes the source until the context is cancelled or the source's
// channel closes. It blocks.
func (m *Manager) Run(ctx context.Context, source EventSource) error {
	events, err := source.Subscribe(ctx)
	if err != nil {
		return err
	}

	go m.pump(ctx, events)

	janitor := time.NewTicker(m.cfg.CleanupInterval)
	defer janitor.Stop()

	flushInterval := m.writer.BatchMaxInterval
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	flush := time.NewTicker(flushInterval)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			m.flushBatch(context.Background())
			return ctx.Err()

		case event, ok := <-m.queue:
			if !ok {
				m.flushBatch(context.Background())
				return nil
			}
			m.process(ctx, event)

		case <-flush.C:
			m.flushBatch(ctx)

		case <-janitor.C:
			now := domain.UnixSeconds(m.now())
			removed := m.engine.ClearOldData(m.cfg.RetentionSeconds, now)
			if removed > 0 {
				m.log.WithField("removed", removed).Debug("cleared old events")
			}
			m.updateGauges()
		}
	}
}

// pump moves events from the source channel into the internal queue so
// queue depth reflects processing backlog.
func (m *Manager) pump(ctx context.Context, events <-chan *domain.LiquidationEvent) {
	defer close(m.queue)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			select {
			case m.queue <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// process runs one event through the detection path.
func (m *Manager) process(ctx context.Context, event *domain.LiquidationEvent) {
	m.engine.AddEvent(event.Symbol, event.USDValue, event.Exchange, event.Timestamp)

	now := domain.UnixSeconds(m.now())
	degraded := m.degraded()

	var snap *domain.VelocitySnapshot
	var corr *domain.CorrelationMatrix
	if degraded {
		snap = m.engine.SnapshotCoarse(event.Symbol, now)
	} else {
		snap = m.engine.Snapshot(event.Symbol, now)
		corr = m.engine.Correlation(event.Symbol, correlationWindowSeconds, now)
	}

	assessment := m.calc.Assess(snap, corr)
	if assessment != nil {
		observability.RecordAssessment(assessment.RiskLevel.String())
		if assessment.Action != domain.ActionWatch {
			m.publish(ctx, assessment)
		}
	}

	m.batch = append(m.batch, event)
	if len(m.batch) >= m.batchLimit() {
		m.flushBatch(ctx)
	}
}

// publish sends the assessment to the broadcast subject for its symbol.
func (m *Manager) publish(ctx context.Context, assessment *domain.RiskAssessment) {
	err := m.broadcaster.Publish(ctx, assessment.Symbol, assessment)
	observability.RecordBroadcast(err)
	if err != nil {
		m.log.WithError(err).WithField("symbol", assessment.Symbol).
			Error("failed to broadcast assessment")
		return
	}

	m.log.WithFields(logrus.Fields{
		"symbol":     assessment.Symbol,
		"risk_level": assessment.RiskLevel.String(),
		"risk_score": assessment.RiskScore,
		"action":     string(assessment.Action),
	}).Info("assessment published")
}

// flushBatch writes buffered events to the liquidation store.
func (m *Manager) flushBatch(ctx context.Context) {
	if m.store == nil || len(m.batch) == 0 {
		m.batch = m.batch[:0]
		return
	}

	start := time.Now()
	err := m.store.InsertBulk(ctx, m.batch)
	observability.RecordDBWrite("clickhouse", time.Since(start).Seconds(), err)

	switch {
	case err == nil:
		observability.DefaultMetrics.LiquidationsStored.Add(float64(len(m.batch)))
	case errors.Is(err, storage.ErrDuplicateKey):
		// The feed is at-least-once, so a redelivered event poisons the
		// whole batch. Fall back to row-by-row inserts and skip duplicates.
		stored := 0
		for _, event := range m.batch {
			insErr := m.store.Insert(ctx, event)
			if insErr == nil {
				stored++
				continue
			}
			if !errors.Is(insErr, storage.ErrDuplicateKey) {
				m.log.WithError(insErr).Error("failed to store liquidation")
			}
		}
		observability.DefaultMetrics.LiquidationsStored.Add(float64(stored))
	default:
		m.log.WithError(err).WithField("rows", len(m.batch)).
			Error("failed to store liquidation batch")
	}

	m.batch = m.batch[:0]
}

func (m *Manager) batchLimit() int {
	if m.writer.BatchMaxRows > 0 {
		return m.writer.BatchMaxRows
	}
	return 500
}

// degraded reports whether the backlog is deep enough to drop to coarse
// snapshots.
func (m *Manager) degraded() bool {
	if m.cfg.DegradedQueueDepth <= 0 {
		return false
	}
	return len(m.queue) > m.cfg.DegradedQueueDepth
}

func (m *Manager) updateGauges() {
	stats := m.engine.Stats()
	observability.UpdateEngineGauges(stats.Symbols, stats.MemoryEstimateKB, len(m.queue), m.degraded())
}

package ledgercache

import (
	"time"

	"github.com/finkit/ledgercache/model"
)

// DefaultTTL bounds how long one snapshot may serve reads before a forced
// reload. Five minutes tracks the staleness budget of the upstream sheet:
// other writers bypass the cache entirely, and the TTL is the only thing
// that makes their edits visible.
const DefaultTTL = 5 * time.Minute

// DefaultCompactEvery is the number of partition transitions between
// automatic arena compactions.
const DefaultCompactEvery = 64

type options struct {
	ttl          time.Duration
	clock        func() time.Time
	logger       *Logger
	metrics      MetricsCollector
	compactEvery int
	docColumns   model.DocumentColumns
	txColumns    model.TransactionColumns
}

func defaultOptions() options {
	return options{
		ttl:          DefaultTTL,
		clock:        time.Now,
		logger:       NewLogger(nil),
		metrics:      NoopMetricsCollector{},
		compactEvery: DefaultCompactEvery,
		docColumns:   model.DefaultDocumentColumns(),
		txColumns:    model.DefaultTransactionColumns(),
	}
}

// Option configures cache construction.
type Option func(*options)

// WithTTL sets the snapshot time-to-live. Non-positive values make every
// access reload, which is only useful in tests.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithClock overrides the time source. Tests use this to pin TTL behavior;
// production code should not.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetrics sets the metrics collector.
// If nil is passed, NoopMetricsCollector is used.
func WithMetrics(collector MetricsCollector) Option {
	return func(o *options) {
		if collector == nil {
			collector = NoopMetricsCollector{}
		}
		o.metrics = collector
	}
}

// WithCompactEvery sets how many partition transitions may pass before the
// active arena is compacted automatically. Zero disables automatic
// compaction; Compact can still be called manually. The policy affects only
// the memory bound, never correctness.
func WithCompactEvery(transitions int) Option {
	return func(o *options) {
		o.compactEvery = transitions
	}
}

// WithDocumentColumns sets the document sheet layout.
func WithDocumentColumns(cols model.DocumentColumns) Option {
	return func(o *options) {
		o.docColumns = cols
	}
}

// WithTransactionColumns sets the transaction sheet layout.
func WithTransactionColumns(cols model.TransactionColumns) Option {
	return func(o *options) {
		o.txColumns = cols
	}
}

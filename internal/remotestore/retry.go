package remotestore

import (
	"context"
	"time"

	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/logging"

	"github.com/googleapis/gax-go/v2"
)

// RetryOptions configures exponential backoff.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions retries three times starting at half a second.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, Multiplier: 2}
}

// backoff converts the options into a jittered gax backoff.
func (o RetryOptions) backoff() *gax.Backoff {
	initial := o.InitialDelay
	if initial <= 0 {
		initial = time.Millisecond
	}
	maxDelay := o.MaxDelay
	if maxDelay < initial {
		maxDelay = initial
	}
	return &gax.Backoff{Initial: initial, Max: maxDelay, Multiplier: o.Multiplier}
}

// WithRetry calls fn until it succeeds, returns a non-transient error, the attempts
// run out or ctx is done.
func WithRetry(ctx context.Context, opts RetryOptions, logger logging.Logger, op string, fn func() error) error {
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := opts.backoff()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !ledgererror.IsTransient(err) || attempt == attempts {
			return err
		}
		pause := bo.Pause()
		logger.WithError(err).Warn("Transient remote failure, retrying",
			logging.F(logging.FieldOperation, op),
			logging.F(logging.FieldAttempt, attempt),
			logging.F(logging.FieldDelay, pause.String()))
		if gax.Sleep(ctx, pause) != nil {
			return err
		}
	}
	return err
}

// RetryingStore retries the read operations of a Store. Create and Replace pass
// through untouched: repeating a write that may have landed is not safe.
type RetryingStore struct {
	Store
	opts   RetryOptions
	logger logging.Logger
}

// NewRetryingStore wraps store.
func NewRetryingStore(store Store, opts RetryOptions, logger logging.Logger) *RetryingStore {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &RetryingStore{Store: store, opts: opts, logger: logger}
}

func (r *RetryingStore) Locate(ctx context.Context, key Key) (Handle, bool, error) {
	var (
		h     Handle
		found bool
	)
	err := WithRetry(ctx, r.opts, r.logger, "locate", func() error {
		var err error
		h, found, err = r.Store.Locate(ctx, key)
		return err
	})
	return h, found, err
}

func (r *RetryingStore) Fetch(ctx context.Context, h Handle) ([]byte, error) {
	var data []byte
	err := WithRetry(ctx, r.opts, r.logger, "fetch", func() error {
		var err error
		data, err = r.Store.Fetch(ctx, h)
		return err
	})
	return data, err
}

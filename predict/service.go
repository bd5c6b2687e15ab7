package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/inferq/cache"
	"github.com/jonwraymond/inferq/coalesce"
	"github.com/jonwraymond/inferq/fingerprint"
	"github.com/jonwraymond/inferq/observe"
	"github.com/jonwraymond/inferq/registry"
	"github.com/jonwraymond/inferq/resilience"
	"github.com/jonwraymond/inferq/stats"
)

// Service serves predictions through the cache and coalescer.
type Service struct {
	cfg        Config
	registry   *registry.Registry
	normalizer *fingerprint.Normalizer
	keyer      fingerprint.Keyer
	group      *coalesce.Group[[]byte]
	stats      *stats.Tracker
	logger     observe.Logger
	metrics    observe.Metrics
}

// New creates a Service that loads models from reg.
func New(reg *registry.Registry, cfg Config) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:        cfg,
		registry:   reg,
		normalizer: fingerprint.NewNormalizer(cfg.Precision),
		logger:     cfg.Middleware.Logger(),
		metrics:    cfg.Middleware.Metrics(),
	}
	s.keyer = fingerprint.NewKeyer(s.normalizer)
	s.stats = stats.New(
		stats.WithSize(func() int { return cfg.Cache.Len(context.Background()) }),
		stats.WithMetrics(s.metrics),
	)
	s.group = coalesce.New(coalesce.Config[[]byte]{
		MaxDuration: cfg.MaxInFlight,
		Shards:      cfg.Shards,
		Lookup:      s.lookup,
		Commit:      s.commit,
		OnAttach: func(_ string, leader bool) {
			if leader {
				s.stats.Miss()
			} else {
				s.stats.Coalesced()
			}
		},
		OnDone: func(_ string, err error) {
			if err == nil {
				s.stats.Completed()
			} else {
				s.stats.Failed()
			}
		},
	})
	return s
}

// Predict returns the prediction for req. Identical requests (same model,
// resolved version and normalized input) are served from the cache while the
// cached result is live, and concurrent identical requests share one model
// invocation.
func (s *Service) Predict(ctx context.Context, req Request, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	version := req.Version
	if o.version != "" {
		version = o.version
	}

	start := time.Now()
	res, meta, err := s.predict(ctx, req, version, o.forceRefresh)

	var source string
	if res != nil {
		source = string(res.Source)
	}
	s.metrics.RecordPrediction(ctx, meta, source, time.Since(start), err)

	logger := s.logger.WithModel(meta)
	if err != nil {
		logger.Warn(ctx, "prediction failed", observe.Field{Key: "error", Value: err.Error()})
		return nil, err
	}
	logger.Debug(ctx, "prediction served",
		observe.Field{Key: "source", Value: source},
		observe.Field{Key: "fingerprint", Value: res.Fingerprint.String()},
	)
	return res, nil
}

func (s *Service) predict(ctx context.Context, req Request, version string, force bool) (*Result, observe.ModelMeta, error) {
	meta := observe.ModelMeta{Name: req.Model, Version: version}
	fail := func(fp fingerprint.Fingerprint, err error) (*Result, observe.ModelMeta, error) {
		return nil, meta, &PredictionError{Model: meta.Name, Version: meta.Version, Fingerprint: fp, Cause: err}
	}

	input, err := s.normalizer.Normalize(req.Input)
	if err == nil {
		if schema, ok := s.cfg.Schemas[req.Model]; ok {
			err = schema.Validate(input)
		}
	}
	if err != nil {
		s.stats.Failed()
		return fail("", err)
	}

	version, err = s.registry.Resolve(ctx, req.Model, version)
	if err != nil {
		s.stats.Failed()
		return fail("", err)
	}
	meta.Version = version

	fp, err := s.keyer.Key(req.Model, version, input)
	if err != nil {
		s.stats.Failed()
		return fail("", err)
	}
	key := fp.String()

	if !force {
		if data, ok := s.lookup(key); ok {
			if rec, err := decode(data); err == nil {
				s.stats.Hit()
				return s.result(meta, fp, rec, SourceCache), meta, nil
			}
			// Unreadable entries are dropped and recomputed.
			_ = s.cfg.Cache.Delete(ctx, key)
		}
	}

	compute := func(ctx context.Context) ([]byte, error) {
		return s.compute(ctx, meta, input)
	}
	var (
		data    []byte
		outcome coalesce.Outcome
	)
	if force {
		data, outcome, err = s.group.Refresh(ctx, key, compute)
	} else {
		data, outcome, err = s.group.Do(ctx, key, compute)
	}
	if err != nil {
		if errors.Is(err, coalesce.ErrStaleInFlight) {
			err = fmt.Errorf("%w: %w", ErrInference, err)
		}
		return fail(fp, err)
	}

	rec, err := decode(data)
	if err != nil {
		return fail(fp, fmt.Errorf("%w: %v", ErrInference, err))
	}

	source := SourceComputed
	switch outcome {
	case coalesce.Follower:
		source = SourceCoalesced
	case coalesce.Cached:
		s.stats.Hit()
		source = SourceCache
	}
	return s.result(meta, fp, rec, source), meta, nil
}

// compute runs on the coalescer's goroutine, detached from the caller's
// cancellation.
func (s *Service) compute(ctx context.Context, meta observe.ModelMeta, input fingerprint.Input) ([]byte, error) {
	s.stats.Begin()
	defer s.stats.End()

	if s.cfg.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.InferenceTimeout)
		defer cancel()
	}

	lm, err := s.registry.Load(ctx, meta.Name, meta.Version)
	if err != nil {
		return nil, err
	}

	infer := s.cfg.Middleware.Wrap(func(ctx context.Context, _ observe.ModelMeta, in fingerprint.Input) (map[string]any, error) {
		return lm.Model.Predict(ctx, in)
	})

	var out map[string]any
	run := func(ctx context.Context) error {
		var err error
		out, err = infer(ctx, meta, input.Clone())
		return err
	}
	if s.cfg.Guard != nil {
		err = s.cfg.Guard.Execute(ctx, meta.ModelID(), run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, classify(meta, err)
	}

	if out == nil {
		out = map[string]any{}
	}
	data, err := json.Marshal(record{Output: out, ComputedAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("%w: output cannot be encoded: %v", ErrInference, err)
	}
	return data, nil
}

func classify(meta observe.ModelMeta, err error) error {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrBulkheadFull):
		return &registry.ModelError{Name: meta.Name, Version: meta.Version, Cause: err}
	case errors.Is(err, registry.ErrModelUnavailable), errors.Is(err, fingerprint.ErrInvalidInput):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrInference, err)
	}
}

// IsModelFault reports whether err should count against a model's circuit
// breaker. Rejected inputs and caller cancellations do not.
func IsModelFault(err error) bool {
	return err != nil &&
		!errors.Is(err, fingerprint.ErrInvalidInput) &&
		!errors.Is(err, context.Canceled)
}

func (s *Service) lookup(key string) ([]byte, bool) {
	e, ok := s.cfg.Cache.Get(context.Background(), key)
	if !ok || !json.Valid(e.Value) {
		return nil, false
	}
	return e.Value, true
}

func (s *Service) commit(key string, data []byte) {
	if !s.cfg.Policy.ShouldCache() {
		return
	}
	ttl := s.cfg.Policy.EffectiveTTL(0)
	if err := s.cfg.Cache.Set(context.Background(), key, data, ttl); err != nil {
		s.logger.Warn(context.Background(), "cache write failed",
			observe.Field{Key: "fingerprint", Value: key},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

func decode(data []byte) (record, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, err
	}
	if rec.Output == nil {
		rec.Output = map[string]any{}
	}
	return rec, nil
}

func (s *Service) result(meta observe.ModelMeta, fp fingerprint.Fingerprint, rec record, source Source) *Result {
	return &Result{
		Output:      rec.Output,
		Model:       meta.Name,
		Version:     meta.Version,
		Fingerprint: fp,
		Source:      source,
		ComputedAt:  rec.ComputedAt,
	}
}

// Cache returns the result cache.
func (s *Service) Cache() cache.Cache { return s.cfg.Cache }

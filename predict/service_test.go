package predict

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/inferq/cache"
	"github.com/jonwraymond/inferq/coalesce"
	"github.com/jonwraymond/inferq/fingerprint"
	"github.com/jonwraymond/inferq/health"
	"github.com/jonwraymond/inferq/registry"
	"github.com/jonwraymond/inferq/resilience"
)

// stubProvider serves one model under any name with a fixed latest version.
type stubProvider struct {
	latest string
	delay  time.Duration
	gate   chan struct{} // when set, invocations wait for it to close
	calls  atomic.Int64
	mu     sync.Mutex
	fail   error
	out    func(version string, in fingerprint.Input) map[string]any
}

func (p *stubProvider) Latest(_ context.Context, name string) (string, error) {
	if name == "missing" {
		return "", registry.ErrUnknownModel
	}
	return p.latest, nil
}

func (p *stubProvider) Load(_ context.Context, name, version string) (registry.Model, error) {
	if name == "missing" {
		return nil, registry.ErrUnknownModel
	}
	return registry.ModelFunc(func(ctx context.Context, in fingerprint.Input) (map[string]any, error) {
		p.calls.Add(1)
		if p.gate != nil {
			<-p.gate
		}
		if p.delay > 0 {
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		p.mu.Lock()
		err := p.fail
		p.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if p.out != nil {
			return p.out(version, in), nil
		}
		return map[string]any{"risk": "moderate", "version": version}, nil
	}), nil
}

func (p *stubProvider) setFail(err error) {
	p.mu.Lock()
	p.fail = err
	p.mu.Unlock()
}

func newTestService(t *testing.T, p *stubProvider, cfg Config) *Service {
	t.Helper()
	if p.latest == "" {
		p.latest = "v1"
	}
	return New(registry.New(p, registry.Config{}), cfg)
}

func strokeRequest() Request {
	return Request{
		Model: "stroke",
		Input: fingerprint.Input{"age": 61, "bmi": 27.4, "smoker": "no"},
	}
}

func TestPredict_Idempotent(t *testing.T) {
	p := &stubProvider{}
	svc := newTestService(t, p, Config{})
	ctx := context.Background()

	first, err := svc.Predict(ctx, strokeRequest())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if first.Source != SourceComputed {
		t.Errorf("first Source = %q, want %q", first.Source, SourceComputed)
	}
	if first.Version != "v1" {
		t.Errorf("Version = %q, want v1", first.Version)
	}

	second, err := svc.Predict(ctx, strokeRequest())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if second.Source != SourceCache {
		t.Errorf("second Source = %q, want %q", second.Source, SourceCache)
	}
	if second.Fingerprint != first.Fingerprint {
		t.Errorf("fingerprints differ: %s vs %s", first.Fingerprint, second.Fingerprint)
	}
	if second.Output["risk"] != first.Output["risk"] {
		t.Errorf("outputs differ: %v vs %v", first.Output, second.Output)
	}
	if !second.ComputedAt.Equal(first.ComputedAt) {
		t.Errorf("ComputedAt = %v, want %v", second.ComputedAt, first.ComputedAt)
	}
	if got := p.calls.Load(); got != 1 {
		t.Errorf("model invoked %d times, want 1", got)
	}
}

func TestPredict_EquivalentInputsShareResult(t *testing.T) {
	p := &stubProvider{}
	svc := newTestService(t, p, Config{})
	ctx := context.Background()

	inputs := []fingerprint.Input{
		{"age": 61, "bmi": 27.4, "smoker": "no"},
		{"smoker": " No ", "bmi": 27.40000001, "age": 61.0},
		{"age": int64(61), "bmi": float32(27.4), "smoker": "NO"},
	}
	for _, in := range inputs {
		if _, err := svc.Predict(ctx, Request{Model: "stroke", Input: in}); err != nil {
			t.Fatalf("Predict(%v) error = %v", in, err)
		}
	}
	if got := p.calls.Load(); got != 1 {
		t.Errorf("model invoked %d times, want 1", got)
	}
}

func TestPredict_OutputIsCallerOwned(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, Config{})
	ctx := context.Background()

	first, err := svc.Predict(ctx, strokeRequest())
	if err != nil {
		t.Fatal(err)
	}
	first.Output["risk"] = "tampered"

	second, err := svc.Predict(ctx, strokeRequest())
	if err != nil {
		t.Fatal(err)
	}
	if second.Output["risk"] != "moderate" {
		t.Errorf("cached output was mutated through a result: %v", second.Output)
	}
}

func TestPredict_RequestNotMutated(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, Config{})
	req := Request{Model: "stroke", Input: fingerprint.Input{"smoker": " No ", "bmi": 27.40000001}}

	if _, err := svc.Predict(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if req.Input["smoker"] != " No " || req.Input["bmi"] != 27.40000001 {
		t.Errorf("request input mutated: %v", req.Input)
	}
}

func TestPredict_ConcurrentIdenticalRequestsCoalesce(t *testing.T) {
	p := &stubProvider{delay: 50 * time.Millisecond}
	svc := newTestService(t, p, Config{})
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	results := make([]*Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Predict(ctx, strokeRequest())
		}(i)
	}
	wg.Wait()

	sources := map[Source]int{}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if results[i].Fingerprint != results[0].Fingerprint {
			t.Errorf("caller %d fingerprint differs", i)
		}
		sources[results[i].Source]++
	}
	if got := p.calls.Load(); got != 1 {
		t.Errorf("model invoked %d times, want 1", got)
	}
	if sources[SourceComputed] != 1 {
		t.Errorf("computed results = %d, want 1 (sources %v)", sources[SourceComputed], sources)
	}

	snap := svc.Stats()
	if snap.Misses != 1 {
		t.Errorf("Misses = %d, want 1", snap.Misses)
	}
	if snap.Hits+snap.Coalesced != n-1 {
		t.Errorf("Hits+Coalesced = %d, want %d", snap.Hits+snap.Coalesced, n-1)
	}
	if snap.Completed != 1 {
		t.Errorf("Completed = %d, want 1", snap.Completed)
	}
	if snap.InFlight != 0 {
		t.Errorf("InFlight = %d, want 0", snap.InFlight)
	}
}

func TestPredict_StatsScripted(t *testing.T) {
	p := &stubProvider{gate: make(chan struct{})}
	svc := newTestService(t, p, Config{})
	ctx := context.Background()

	request := func(age int) Request {
		return Request{Model: "stroke", Input: fingerprint.Input{"age": age}}
	}
	ages := []int{40, 50, 60}

	// Three callers per input while every computation is held open: one
	// leader and two followers each.
	var wg sync.WaitGroup
	for _, age := range ages {
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := svc.Predict(ctx, request(age)); err != nil {
					t.Errorf("Predict(age=%d) error = %v", age, err)
				}
			}()
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		flights := svc.InFlight()
		waiters := 0
		for _, f := range flights {
			waiters += f.Waiters
		}
		if len(flights) == 3 && waiters == 9 {
			break
		}
		if time.Now().After(deadline) {
			close(p.gate)
			wg.Wait()
			t.Fatalf("in flight = %d computations / %d callers, want 3 / 9", len(flights), waiters)
		}
		time.Sleep(time.Millisecond)
	}
	close(p.gate)
	wg.Wait()

	for _, age := range []int{40, 40, 50, 60} {
		res, err := svc.Predict(ctx, request(age))
		if err != nil {
			t.Fatalf("Predict(age=%d) error = %v", age, err)
		}
		if res.Source != SourceCache {
			t.Errorf("Predict(age=%d) Source = %q, want cache", age, res.Source)
		}
	}

	got := svc.Stats()
	if got.Misses != 3 || got.Coalesced != 6 || got.Hits != 4 {
		t.Errorf("misses/coalesced/hits = %d/%d/%d, want 3/6/4", got.Misses, got.Coalesced, got.Hits)
	}
	if got.Completed != 3 || got.Failed != 0 {
		t.Errorf("completed/failed = %d/%d, want 3/0", got.Completed, got.Failed)
	}
	if got.CacheSize != 3 || got.InFlight != 0 {
		t.Errorf("cache size/in flight = %d/%d, want 3/0", got.CacheSize, got.InFlight)
	}
	if calls := p.calls.Load(); calls != 3 {
		t.Errorf("model invoked %d times, want 3", calls)
	}
}

func TestPredict_NoCache(t *testing.T) {
	p := &stubProvider{}
	svc := newTestService(t, p, Config{NoCache: true})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := svc.Predict(ctx, strokeRequest())
		if err != nil {
			t.Fatalf("Predict() error = %v", err)
		}
		if res.Source != SourceComputed {
			t.Errorf("call %d Source = %q, want %q", i, res.Source, SourceComputed)
		}
	}
	if calls := p.calls.Load(); calls != 2 {
		t.Errorf("model invoked %d times, want 2", calls)
	}
	if st := svc.Stats(); st.Hits != 0 || st.Misses != 2 || st.CacheSize != 0 {
		t.Errorf("hits/misses/cache size = %d/%d/%d, want 0/2/0", st.Hits, st.Misses, st.CacheSize)
	}
}

func TestPredict_PrecisionIntegers(t *testing.T) {
	p := &stubProvider{}
	svc := newTestService(t, p, Config{Precision: PrecisionIntegers})
	ctx := context.Background()

	a, err := svc.Predict(ctx, Request{Model: "stroke", Input: fingerprint.Input{"bmi": 27.4}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	b, err := svc.Predict(ctx, Request{Model: "stroke", Input: fingerprint.Input{"bmi": 27.2}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if a.Fingerprint != b.Fingerprint {
		t.Errorf("27.4 and 27.2 fingerprint differently at integer precision")
	}
	if b.Source != SourceCache {
		t.Errorf("second Source = %q, want %q", b.Source, SourceCache)
	}

	c, err := svc.Predict(ctx, Request{Model: "stroke", Input: fingerprint.Input{"bmi": 27.6}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if c.Fingerprint == a.Fingerprint {
		t.Errorf("27.6 rounded onto 27")
	}
}

func TestPredict_StrokeScenario(t *testing.T) {
	p := &stubProvider{delay: 50 * time.Millisecond}
	svc := newTestService(t, p, Config{})
	ctx := context.Background()

	start := time.Now()
	if _, err := svc.Predict(ctx, strokeRequest()); err != nil {
		t.Fatal(err)
	}
	if took := time.Since(start); took < 50*time.Millisecond {
		t.Errorf("first call took %v, want >= 50ms", took)
	}
	if s := svc.Stats(); s.Misses != 1 || s.Hits != 0 {
		t.Errorf("after first call stats = %+v, want 1 miss", s)
	}

	start = time.Now()
	res, err := svc.Predict(ctx, strokeRequest())
	if err != nil {
		t.Fatal(err)
	}
	if took := time.Since(start); took >= 5*time.Millisecond {
		t.Errorf("second call took %v, want < 5ms", took)
	}
	if res.Output["risk"] != "moderate" {
		t.Errorf("risk = %v, want moderate", res.Output["risk"])
	}
	if s := svc.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Errorf("after second call stats = %+v, want 1 hit and 1 miss", s)
	}
	if got := p.calls.Load(); got != 1 {
		t.Errorf("model invoked %d times, want 1", got)
	}
}

func TestPredict_VersionSensitivity(t *testing.T) {
	p := &stubProvider{}
	svc := newTestService(t, p, Config{})
	ctx := context.Background()

	v1, err := svc.Predict(ctx, strokeRequest(), WithVersion("v1"))
	if err != nil {
		t.Fatal(err)
	}
	v2, err := svc.Predict(ctx, strokeRequest(), WithVersion("v2"))
	if err != nil {
		t.Fatal(err)
	}
	if v1.Fingerprint == v2.Fingerprint {
		t.Error("different versions share a fingerprint")
	}
	if v2.Output["version"] != "v2" {
		t.Errorf("v2 output = %v", v2.Output)
	}
	if got := p.calls.Load(); got != 2 {
		t.Errorf("model invoked %d times, want 2", got)
	}

	// An absent version resolves to latest and shares v1's entry.
	latest, err := svc.Predict(ctx, strokeRequest())
	if err != nil {
		t.Fatal(err)
	}
	if latest.Source != SourceCache || latest.Fingerprint != v1.Fingerprint {
		t.Errorf("latest = %+v, want cached v1", latest)
	}
}

func TestPredict_ForceRefresh(t *testing.T) {
	var n atomic.Int64
	p := &stubProvider{out: func(string, fingerprint.Input) map[string]any {
		return map[string]any{"score": float64(n.Add(1))}
	}}
	svc := newTestService(t, p, Config{})
	ctx := context.Background()

	first, err := svc.Predict(ctx, strokeRequest())
	if err != nil {
		t.Fatal(err)
	}
	refreshed, err := svc.Predict(ctx, strokeRequest(), WithForceRefresh())
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.Source != SourceComputed {
		t.Errorf("refreshed Source = %q, want computed", refreshed.Source)
	}
	if refreshed.Output["score"] == first.Output["score"] {
		t.Error("force refresh returned the old result")
	}

	after, err := svc.Predict(ctx, strokeRequest())
	if err != nil {
		t.Fatal(err)
	}
	if after.Source != SourceCache || after.Output["score"] != refreshed.Output["score"] {
		t.Errorf("after refresh = %+v, want cached refreshed result", after)
	}
	if got := p.calls.Load(); got != 2 {
		t.Errorf("model invoked %d times, want 2", got)
	}
}

func TestPredict_FailureNotCached(t *testing.T) {
	boom := errors.New("model exploded")
	p := &stubProvider{}
	p.setFail(boom)
	svc := newTestService(t, p, Config{})
	ctx := context.Background()

	_, err := svc.Predict(ctx, strokeRequest())
	if !errors.Is(err, ErrPredictionFailed) || !errors.Is(err, ErrInference) || !errors.Is(err, boom) {
		t.Fatalf("Predict() error = %v, want ErrPredictionFailed wrapping ErrInference and cause", err)
	}
	var pe *PredictionError
	if !errors.As(err, &pe) || pe.Model != "stroke" || pe.Version != "v1" || pe.Fingerprint == "" {
		t.Errorf("PredictionError = %+v", pe)
	}
	if n := svc.Cache().Len(ctx); n != 0 {
		t.Errorf("cache size after failure = %d, want 0", n)
	}

	p.setFail(nil)
	res, err := svc.Predict(ctx, strokeRequest())
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if res.Source != SourceComputed {
		t.Errorf("retry Source = %q, want computed", res.Source)
	}
	if got := p.calls.Load(); got != 2 {
		t.Errorf("model invoked %d times, want 2", got)
	}

	s := svc.Stats()
	if s.Failed != 1 || s.Completed != 1 || s.Misses != 2 {
		t.Errorf("stats = %+v, want 1 failed, 1 completed, 2 misses", s)
	}
}

func TestPredict_FailureSharedByFollowers(t *testing.T) {
	boom := errors.New("model exploded")
	p := &stubProvider{delay: 30 * time.Millisecond}
	p.setFail(boom)
	svc := newTestService(t, p, Config{})

	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Predict(context.Background(), strokeRequest()); errors.Is(err, boom) {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 10 {
		t.Errorf("failures = %d, want 10", failures.Load())
	}
	if got := p.calls.Load(); got != 1 {
		t.Errorf("model invoked %d times, want 1", got)
	}
}

func TestPredict_InvalidInputFailsFast(t *testing.T) {
	p := &stubProvider{}
	svc := newTestService(t, p, Config{
		Schemas: map[string]fingerprint.Schema{
			"stroke": {Fields: map[string]fingerprint.Field{
				"age":    {Kind: fingerprint.KindNumber, Required: true, Min: fingerprint.Bound(0), Max: fingerprint.Bound(130)},
				"smoker": {Kind: fingerprint.KindString, Allowed: []string{"yes", "no"}},
				"bmi":    {Kind: fingerprint.KindNumber},
			}},
		},
	})

	tests := []struct {
		name  string
		input fingerprint.Input
	}{
		{"missing required", fingerprint.Input{"bmi": 27.4}},
		{"out of range", fingerprint.Input{"age": 200}},
		{"not allowed", fingerprint.Input{"age": 61, "smoker": "sometimes"}},
		{"unknown field", fingerprint.Input{"age": 61, "height": 170}},
		{"unsupported value", fingerprint.Input{"age": 61, "bmi": []int{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Predict(context.Background(), Request{Model: "stroke", Input: tt.input})
			if !errors.Is(err, fingerprint.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
			if !errors.Is(err, ErrPredictionFailed) {
				t.Errorf("error = %v, want ErrPredictionFailed", err)
			}
		})
	}
	if got := p.calls.Load(); got != 0 {
		t.Errorf("model invoked %d times, want 0", got)
	}
	if s := svc.Stats(); s.Failed != int64(len(tests)) || s.Misses != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPredict_UnknownModel(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, Config{})
	_, err := svc.Predict(context.Background(), Request{Model: "missing", Input: fingerprint.Input{"a": 1}})
	if !errors.Is(err, registry.ErrModelUnavailable) {
		t.Errorf("error = %v, want ErrModelUnavailable", err)
	}
	_, err = svc.Predict(context.Background(), Request{Model: "missing", Version: "v1", Input: fingerprint.Input{"a": 1}})
	if !errors.Is(err, registry.ErrModelUnavailable) {
		t.Errorf("pinned version error = %v, want ErrModelUnavailable", err)
	}
}

func TestPredict_CallerCancelDoesNotAbortComputation(t *testing.T) {
	p := &stubProvider{delay: 40 * time.Millisecond}
	svc := newTestService(t, p, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := svc.Predict(ctx, strokeRequest()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}

	deadline := time.Now().Add(time.Second)
	for svc.Cache().Len(context.Background()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("abandoned computation never committed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	res, err := svc.Predict(context.Background(), strokeRequest())
	if err != nil || res.Source != SourceCache {
		t.Errorf("Predict() = %+v, %v; want cached result", res, err)
	}
}

func TestPredict_StaleInFlight(t *testing.T) {
	p := &stubProvider{delay: 200 * time.Millisecond}
	svc := newTestService(t, p, Config{MaxInFlight: 20 * time.Millisecond})

	_, err := svc.Predict(context.Background(), strokeRequest())
	if !errors.Is(err, coalesce.ErrStaleInFlight) {
		t.Fatalf("error = %v, want ErrStaleInFlight", err)
	}
	if !errors.Is(err, ErrInference) {
		t.Errorf("error = %v, want it to match ErrInference", err)
	}
	if n := len(svc.InFlight()); n != 0 {
		t.Errorf("in-flight entries = %d, want 0", n)
	}
	if s := svc.Stats(); s.Failed != 1 {
		t.Errorf("Failed = %d, want 1", s.Failed)
	}
}

func TestPredict_InferenceTimeout(t *testing.T) {
	p := &stubProvider{delay: 200 * time.Millisecond}
	svc := newTestService(t, p, Config{InferenceTimeout: 10 * time.Millisecond})

	_, err := svc.Predict(context.Background(), strokeRequest())
	if !errors.Is(err, ErrInference) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want ErrInference wrapping DeadlineExceeded", err)
	}
}

func TestPredict_OpenCircuitIsUnavailable(t *testing.T) {
	p := &stubProvider{}
	p.setFail(errors.New("model exploded"))
	guard := resilience.NewGuard(nil, resilience.NewBreakerSet(resilience.CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
		IsFailure:    IsModelFault,
	}))
	svc := newTestService(t, p, Config{Guard: guard})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Predict(ctx, strokeRequest()); !errors.Is(err, ErrInference) {
			t.Fatalf("call %d error = %v, want ErrInference", i, err)
		}
	}
	_, err := svc.Predict(ctx, strokeRequest())
	if !errors.Is(err, registry.ErrModelUnavailable) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("error = %v, want ErrModelUnavailable wrapping ErrCircuitOpen", err)
	}
	if got := p.calls.Load(); got != 2 {
		t.Errorf("model invoked %d times, want 2", got)
	}

	res := svc.HealthChecker().Check(ctx)
	if res.Status != health.StatusDegraded {
		t.Errorf("health = %v, want degraded", res.Status)
	}

	if !svc.UnloadModel("stroke", "v1") {
		t.Error("UnloadModel() = false, want true")
	}
	if got := svc.Breakers(); len(got) != 0 {
		t.Errorf("breakers after unload = %v, want none", got)
	}
}

func TestIsModelFault(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{&fingerprint.InputError{Field: "age", Reason: "bad"}, false},
		{errors.New("boom"), true},
		{context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		if got := IsModelFault(tt.err); got != tt.want {
			t.Errorf("IsModelFault(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestClearCache(t *testing.T) {
	p := &stubProvider{}
	svc := newTestService(t, p, Config{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		req := Request{Model: "stroke", Input: fingerprint.Input{"age": i}}
		if _, err := svc.Predict(ctx, req); err != nil {
			t.Fatal(err)
		}
	}
	if s := svc.Stats(); s.CacheSize != 10 {
		t.Fatalf("CacheSize = %d, want 10", s.CacheSize)
	}

	n, err := svc.ClearCache(ctx)
	if err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if n != 10 {
		t.Errorf("ClearCache() = %d, want 10", n)
	}
	if s := svc.Stats(); s.CacheSize != 0 {
		t.Errorf("CacheSize after clear = %d, want 0", s.CacheSize)
	}

	res, err := svc.Predict(ctx, Request{Model: "stroke", Input: fingerprint.Input{"age": 0}})
	if err != nil || res.Source != SourceComputed {
		t.Errorf("after clear = %+v, %v; want recomputed", res, err)
	}
}

func TestResetStats(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, Config{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Predict(ctx, strokeRequest()); err != nil {
			t.Fatal(err)
		}
	}
	svc.ResetStats()
	s := svc.Stats()
	if s.Hits != 0 || s.Misses != 0 || s.Completed != 0 {
		t.Errorf("stats after reset = %+v", s)
	}
	if s.CacheSize != 1 {
		t.Errorf("CacheSize after reset = %d, want 1", s.CacheSize)
	}
}

func TestPreloadModels(t *testing.T) {
	p := &stubProvider{latest: "v3"}
	svc := New(registry.New(p, registry.Config{}), Config{})

	report := svc.PreloadModels(context.Background(), []string{"stroke", "diabetes@v1", "missing"})
	if len(report) != 3 {
		t.Fatalf("report = %v, want 3 entries", report)
	}
	if failed := report.Failed(); len(failed) != 1 || failed[0] != "missing" {
		t.Errorf("Failed() = %v, want [missing]", failed)
	}

	got := map[string]bool{}
	for _, m := range svc.Models() {
		got[m.Name+"@"+m.Version] = true
	}
	for _, want := range []string{"stroke@v3", "diabetes@v1"} {
		if !got[want] {
			t.Errorf("model %s not resident; have %v", want, got)
		}
	}
}

func TestHealthChecker(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, Config{})
	if _, err := svc.Predict(context.Background(), strokeRequest()); err != nil {
		t.Fatal(err)
	}
	res := svc.HealthChecker().Check(context.Background())
	if res.Status != health.StatusHealthy {
		t.Errorf("Status = %v, want healthy", res.Status)
	}
	if res.Details["cache_size"] != 1 {
		t.Errorf("cache_size = %v, want 1", res.Details["cache_size"])
	}
}

func TestPredict_CorruptEntryRecomputed(t *testing.T) {
	mem := cache.NewMemoryCache(cache.DefaultPolicy())
	p := &stubProvider{}
	svc := newTestService(t, p, Config{Cache: mem})
	ctx := context.Background()

	res, err := svc.Predict(ctx, strokeRequest())
	if err != nil {
		t.Fatal(err)
	}
	if err := mem.Set(ctx, res.Fingerprint.String(), []byte("not json"), time.Minute); err != nil {
		t.Fatal(err)
	}

	again, err := svc.Predict(ctx, strokeRequest())
	if err != nil {
		t.Fatal(err)
	}
	if again.Source != SourceComputed {
		t.Errorf("Source = %q, want computed", again.Source)
	}
	if got := p.calls.Load(); got != 2 {
		t.Errorf("model invoked %d times, want 2", got)
	}
}

func TestPredictionError_Message(t *testing.T) {
	err := &PredictionError{Model: "stroke", Version: "v1", Cause: fmt.Errorf("%w: boom", ErrInference)}
	if got, want := err.Error(), "predict: stroke@v1: predict: inference failed: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

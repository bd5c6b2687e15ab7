package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// LoadedModel is a resident model.
type LoadedModel struct {
	Name     string
	Version  string
	Model    Model
	LoadedAt time.Time
	LastUsed time.Time
}

// Ref names a model and an optional version (empty means latest).
type Ref struct {
	Name    string
	Version string
}

// String returns "name" or "name@version".
func (r Ref) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "@" + r.Version
}

// Report maps Ref.String() to the outcome of loading it (nil on success).
type Report map[string]error

// Failed returns the refs that failed to load, sorted.
func (r Report) Failed() []string {
	var out []string
	for ref, err := range r {
		if err != nil {
			out = append(out, ref)
		}
	}
	sort.Strings(out)
	return out
}

// Config configures a Registry.
type Config struct {
	// PreloadConcurrency bounds concurrent loads during Preload.
	// Default: 4
	PreloadConcurrency int

	// IdleTTL evicts resident models unused for longer than this.
	// Default: 0 (never)
	IdleTTL time.Duration

	// OnLoad is called after each successful construction by the provider.
	OnLoad func(name, version string, took time.Duration)
}

type key struct{ name, version string }

// flightKey joins name and version with NUL, which Resolve rejects in both,
// so ("a@b", "c") and ("a", "b@c") never share a load.
func (k key) flightKey() string { return k.name + "\x00" + k.version }

// Registry caches models obtained from a Provider.
type Registry struct {
	provider Provider
	config   Config
	group    singleflight.Group

	mu     sync.RWMutex
	models map[key]*LoadedModel
}

// New creates a Registry backed by provider.
func New(provider Provider, config Config) *Registry {
	if config.PreloadConcurrency <= 0 {
		config.PreloadConcurrency = 4
	}
	return &Registry{
		provider: provider,
		config:   config,
		models:   make(map[key]*LoadedModel),
	}
}

// Resolve returns version unchanged if set, else the provider's latest.
func (r *Registry) Resolve(ctx context.Context, name, version string) (string, error) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", &ModelError{Name: name, Cause: ErrUnknownModel}
	}
	if strings.ContainsRune(version, 0) {
		return "", &ModelError{Name: name, Version: version, Cause: ErrUnknownVersion}
	}
	if version != "" {
		return version, nil
	}
	v, err := r.provider.Latest(ctx, name)
	if err != nil {
		return "", &ModelError{Name: name, Cause: err}
	}
	if v == "" {
		return "", &ModelError{Name: name, Cause: ErrUnknownVersion}
	}
	return v, nil
}

// Load returns the resident model for (name, version), constructing it on
// first use. An empty version resolves to latest. Concurrent loads of the
// same model share one provider call.
func (r *Registry) Load(ctx context.Context, name, version string) (*LoadedModel, error) {
	version, err := r.Resolve(ctx, name, version)
	if err != nil {
		return nil, err
	}
	k := key{name, version}
	now := time.Now()

	if r.config.IdleTTL > 0 {
		r.Sweep(now)
	}

	if lm, ok := r.touch(k, now); ok {
		return lm, nil
	}

	v, err, _ := r.group.Do(k.flightKey(), func() (any, error) {
		r.mu.RLock()
		lm, ok := r.models[k]
		r.mu.RUnlock()
		if ok {
			return lm, nil
		}

		start := time.Now()
		// Detached so one caller's cancellation does not fail other waiters.
		m, err := r.provider.Load(context.WithoutCancel(ctx), name, version)
		if err != nil {
			return nil, &ModelError{Name: name, Version: version, Cause: err}
		}
		if m == nil {
			return nil, &ModelError{Name: name, Version: version, Cause: errors.New("provider returned nil model")}
		}
		loaded := time.Now()
		lm = &LoadedModel{Name: name, Version: version, Model: m, LoadedAt: loaded, LastUsed: loaded}

		r.mu.Lock()
		r.models[k] = lm
		r.mu.Unlock()

		if r.config.OnLoad != nil {
			r.config.OnLoad(name, version, loaded.Sub(start))
		}
		return lm, nil
	})
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := *v.(*LoadedModel)
	r.mu.RUnlock()
	return &out, nil
}

// touch marks a resident model used and returns a copy of it.
func (r *Registry) touch(k key, now time.Time) (*LoadedModel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lm, ok := r.models[k]
	if !ok {
		return nil, false
	}
	lm.LastUsed = now
	out := *lm
	return &out, true
}

// Preload loads every ref concurrently and reports each outcome. It waits
// for all loads; a failure never cancels the others.
func (r *Registry) Preload(ctx context.Context, refs []Ref) Report {
	report := make(Report, len(refs))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.config.PreloadConcurrency)
	for _, ref := range refs {
		g.Go(func() error {
			_, err := r.Load(ctx, ref.Name, ref.Version)
			mu.Lock()
			report[ref.String()] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// Unload removes a resident model. It reports whether one was removed.
func (r *Registry) Unload(name, version string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{name, version}
	if _, ok := r.models[k]; !ok {
		return false
	}
	delete(r.models, k)
	return true
}

// Models returns a snapshot of resident models sorted by name and version.
func (r *Registry) Models() []LoadedModel {
	r.mu.RLock()
	out := make([]LoadedModel, 0, len(r.models))
	for _, lm := range r.models {
		out = append(out, *lm)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Sweep evicts models idle since before now-IdleTTL and returns how many
// were evicted. It does nothing when IdleTTL is zero.
func (r *Registry) Sweep(now time.Time) int {
	if r.config.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.config.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, lm := range r.models {
		if lm.LastUsed.Before(cutoff) {
			delete(r.models, k)
			n++
		}
	}
	return n
}

// Start runs Sweep every interval until ctx ends. It does nothing when
// IdleTTL is zero.
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	if r.config.IdleTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = r.config.IdleTTL / 2
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.Sweep(now)
			}
		}
	}()
}

// ParseRef parses "name" or "name@version".
func ParseRef(s string) Ref {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "@"); i > 0 {
		return Ref{Name: s[:i], Version: s[i+1:]}
	}
	return Ref{Name: s}
}

package provider

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jonwraymond/inferq/registry"
)

// Static is an in-memory registry.Provider.
type Static struct {
	mu     sync.RWMutex
	models map[string]map[string]registry.Model
	order  map[string][]string
	latest map[string]string
}

// NewStatic creates an empty provider.
func NewStatic() *Static {
	return &Static{
		models: make(map[string]map[string]registry.Model),
		order:  make(map[string][]string),
		latest: make(map[string]string),
	}
}

// Register adds m as name@version. Unless SetLatest pins a version, the
// most recently registered version is latest.
func (s *Static) Register(name, version string, m registry.Model) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.models[name] == nil {
		s.models[name] = make(map[string]registry.Model)
	}
	if _, exists := s.models[name][version]; !exists {
		s.order[name] = append(s.order[name], version)
	}
	s.models[name][version] = m
	return s
}

// SetLatest pins the version returned by Latest.
func (s *Static) SetLatest(name, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[name][version]; !ok {
		return fmt.Errorf("%w: %s@%s", registry.ErrUnknownVersion, name, version)
	}
	s.latest[name] = version
	return nil
}

// Latest implements registry.Provider.
func (s *Static) Latest(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.latest[name]; ok {
		return v, nil
	}
	versions := s.order[name]
	if len(versions) == 0 {
		return "", fmt.Errorf("%w: %s", registry.ErrUnknownModel, name)
	}
	return versions[len(versions)-1], nil
}

// Load implements registry.Provider.
func (s *Static) Load(_ context.Context, name, version string) (registry.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownModel, name)
	}
	m, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", registry.ErrUnknownVersion, name, version)
	}
	return m, nil
}

// Names lists registered model names.
func (s *Static) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.models))
	for n := range s.models {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

var _ registry.Provider = (*Static)(nil)

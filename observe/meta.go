package observe

// ModelMeta identifies a model for telemetry purposes.
type ModelMeta struct {
	Name    string // Model name (required)
	Version string // Resolved model version (optional)
}

// ModelID returns "name@version", or just the name when no version is set.
func (m ModelMeta) ModelID() string {
	if m.Version == "" {
		return m.Name
	}
	return m.Name + "@" + m.Version
}

// SpanName returns the deterministic span name for an inference.
// Format: model.predict.<name>
func (m ModelMeta) SpanName() string {
	return "model.predict." + m.Name
}

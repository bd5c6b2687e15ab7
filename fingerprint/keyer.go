package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Fingerprint identifies one (model, resolved version, normalized input) triple.
// Format: fp:<model>:<version>:<sha256 hex>
type Fingerprint string

// String returns the fingerprint as a plain string.
func (f Fingerprint) String() string { return string(f) }

// Keyer derives fingerprints from prediction requests.
//
// Contract:
// - Determinism: same model, version and normalized input must produce the same key
//   regardless of map iteration order or superficial value formatting.
// - Concurrency: implementations must be safe for concurrent use.
// - Purity: Key must not modify its input or have side effects.
type Keyer interface {
	Key(model, version string, input Input) (Fingerprint, error)
}

// DefaultKeyer hashes canonical JSON of the normalized input with SHA-256.
type DefaultKeyer struct {
	normalizer *Normalizer
}

// NewDefaultKeyer creates a keyer that rounds numbers to DefaultPrecision.
func NewDefaultKeyer() *DefaultKeyer {
	return NewKeyer(NewNormalizer(DefaultPrecision))
}

// NewKeyer creates a keyer around the given normalizer.
func NewKeyer(n *Normalizer) *DefaultKeyer {
	if n == nil {
		n = NewNormalizer(DefaultPrecision)
	}
	return &DefaultKeyer{normalizer: n}
}

// Key normalizes input and returns its fingerprint. The full 32-byte digest
// is kept so collisions are negligible.
func (k *DefaultKeyer) Key(model, version string, input Input) (Fingerprint, error) {
	if err := validateName(model); err != nil {
		return "", err
	}
	if strings.ContainsAny(version, " \t\n\r:") {
		return "", fmt.Errorf("%w: version %q", ErrInvalidModel, version)
	}

	normalized, err := k.normalizer.Normalize(input)
	if err != nil {
		return "", err
	}

	canonical, err := k.canonicalize(normalized)
	if err != nil {
		return "", fmt.Errorf("fingerprint: failed to canonicalize input: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return Fingerprint("fp:" + model + ":" + version + ":" + hex.EncodeToString(sum[:])), nil
}

// canonicalize renders normalized input as JSON with sorted keys and
// numbers in fixed-precision form.
func (k *DefaultKeyer) canonicalize(in Input) ([]byte, error) {
	buf := make([]byte, 0, 32*len(in)+2)
	buf = append(buf, '{')
	for i, key := range in.Keys() {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')

		switch v := in[key].(type) {
		case float64:
			buf = append(buf, k.normalizer.FormatNumber(v)...)
		default:
			valBytes, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			buf = append(buf, valBytes...)
		}
	}
	buf = append(buf, '}')
	return buf, nil
}

func validateName(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModel)
	}
	if strings.ContainsAny(model, " \t\n\r:") {
		return fmt.Errorf("%w: %q", ErrInvalidModel, model)
	}
	return nil
}

var _ Keyer = (*DefaultKeyer)(nil)

package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// =============================================================================
// Settings: typed option-value registry
// =============================================================================

// Settings holds typed per-run option values keyed by name, populated by the
// CLI layer and read by stressors. Values are write-once in practice but the
// registry is safe for concurrent use.
type Settings struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewSettings creates an empty Settings registry.
func NewSettings() *Settings {
	return &Settings{values: make(map[string]any)}
}

// SetUint64 stores an unsigned integer option.
func (s *Settings) SetUint64(key string, v uint64) {
	s.set(key, v)
}

// Uint64 returns an unsigned integer option and whether it was set.
func (s *Settings) Uint64(key string) (uint64, bool) {
	v, ok := s.get(key)
	if !ok {
		return 0, false
	}
	u, ok := v.(uint64)
	return u, ok
}

// SetInt stores an integer option.
func (s *Settings) SetInt(key string, v int) {
	s.set(key, v)
}

// Int returns an integer option and whether it was set.
func (s *Settings) Int(key string) (int, bool) {
	v, ok := s.get(key)
	if !ok {
		return 0, false
	}
	i, ok := v.(int)
	return i, ok
}

// SetString stores a string option.
func (s *Settings) SetString(key string, v string) {
	s.set(key, v)
}

// String returns a string option and whether it was set.
func (s *Settings) String(key string) (string, bool) {
	v, ok := s.get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// SetBool stores a boolean option.
func (s *Settings) SetBool(key string, v bool) {
	s.set(key, v)
}

// Bool returns a boolean option and whether it was set.
func (s *Settings) Bool(key string) (bool, bool) {
	v, ok := s.get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (s *Settings) set(key string, v any) {
	s.mu.Lock()
	s.values[key] = v
	s.mu.Unlock()
}

func (s *Settings) get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Encode renders all options as type-tagged key=value items so they can be
// handed to a spawned worker process on its command line.
func (s *Settings) Encode() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]string, 0, len(s.values))
	for key, v := range s.values {
		switch tv := v.(type) {
		case uint64:
			items = append(items, fmt.Sprintf("u:%s=%d", key, tv))
		case int:
			items = append(items, fmt.Sprintf("i:%s=%d", key, tv))
		case bool:
			items = append(items, fmt.Sprintf("b:%s=%t", key, tv))
		case string:
			items = append(items, fmt.Sprintf("s:%s=%s", key, tv))
		}
	}
	sort.Strings(items)
	return items
}

// DecodeSetting parses one Encode item back into the registry.
func (s *Settings) DecodeSetting(item string) error {
	tag, rest, ok := strings.Cut(item, ":")
	if !ok {
		return fmt.Errorf("malformed setting %q", item)
	}
	key, value, ok := strings.Cut(rest, "=")
	if !ok || key == "" {
		return fmt.Errorf("malformed setting %q", item)
	}

	switch tag {
	case "u":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
		s.SetUint64(key, v)
	case "i":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
		s.SetInt(key, v)
	case "b":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
		s.SetBool(key, v)
	case "s":
		s.SetString(key, value)
	default:
		return fmt.Errorf("unknown setting type tag %q in %q", tag, item)
	}
	return nil
}

// CheckRange validates that an option value lies within [lo, hi].
func CheckRange(name string, v, lo, hi uint64) error {
	if v < lo || v > hi {
		return fmt.Errorf("option %s value %d out of range [%d..%d]", name, v, lo, hi)
	}
	return nil
}

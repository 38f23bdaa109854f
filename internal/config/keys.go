package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
)

var secretKeys = map[string]bool{
	"llm.api_key":    true,
	"telegram.token": true,
}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Mask hides all but the last four characters of a secret value.
// Non-secret keys and empty values pass through.
func Mask(key string, v any) any {
	s, ok := v.(string)
	if !secretKeys[key] || !ok || s == "" {
		return v
	}
	if len(s) <= 4 {
		return "***" + s
	}
	return "***" + s[len(s)-4:]
}

// Keys returns every settable dot-separated key, sorted.
func Keys() []string {
	m, err := ToMap(defaults())
	if err != nil {
		return nil
	}
	keys := make([]string, 0, 24)
	walk(m, "", func(key string, _ any) {
		keys = append(keys, key)
	})
	sort.Strings(keys)
	return keys
}

func knownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// walk visits the leaves of a nested JSON map with their dotted paths.
func walk(m map[string]any, prefix string, fn func(key string, v any)) {
	for k, v := range m {
		if prefix != "" {
			k = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			walk(child, k, fn)
			continue
		}
		fn(k, v)
	}
}

func lookup(m map[string]any, key string) (any, bool) {
	var cur any = m
	for _, part := range strings.Split(key, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = node[part]; !ok {
			return nil, false
		}
	}
	if _, ok := cur.(map[string]any); ok {
		return nil, false
	}
	return cur, true
}

func assign(m map[string]any, key string, v any) {
	parts := strings.Split(key, ".")
	node := m
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = v
}

// Validate checks the values that other packages cannot recover from.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("store must be %q or %q, got %q", StoreJSON, StoreSQLite, c.Store)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.AuditSchedule != "" {
		p := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := p.Parse(c.AuditSchedule); err != nil {
			return fmt.Errorf("audit_schedule: %w", err)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

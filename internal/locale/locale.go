// Package locale resolves translated UI strings from flat key tables built
// from nested JSON locale files.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed locales/*.json
var localeFS embed.FS

// DefaultLocale is used when a resolver is built without an explicit default.
const DefaultLocale = "en"

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// Resolver maps (locale, key) pairs to strings. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	tables        map[string]map[string]string
	defaultLocale string
}

// New builds a resolver from the embedded locale files.
func New(defaultLocale string) (*Resolver, error) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("locale.New: reading embedded locales: %w", err)
	}

	raw := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("locale.New: reading %s: %w", e.Name(), err)
		}
		raw[strings.TrimSuffix(e.Name(), ".json")] = data
	}
	return NewFromJSON(defaultLocale, raw)
}

// NewFromJSON builds a resolver from nested JSON documents keyed by locale code.
func NewFromJSON(defaultLocale string, docs map[string][]byte) (*Resolver, error) {
	if defaultLocale == "" {
		defaultLocale = DefaultLocale
	}

	r := &Resolver{
		tables:        make(map[string]map[string]string, len(docs)),
		defaultLocale: defaultLocale,
	}
	for code, data := range docs {
		var tree map[string]interface{}
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("locale: parsing %s: %w", code, err)
		}
		table := make(map[string]string)
		flatten("", tree, table)
		r.tables[code] = table
	}

	if _, ok := r.tables[defaultLocale]; !ok {
		return nil, fmt.Errorf("locale: default locale %q has no table", defaultLocale)
	}
	return r, nil
}

func flatten(prefix string, node interface{}, out map[string]string) {
	switch v := node.(type) {
	case map[string]interface{}:
		for k, child := range v {
			flatten(join(prefix, k), child, out)
		}
	case []interface{}:
		for i, child := range v {
			flatten(join(prefix, strconv.Itoa(i)), child, out)
		}
	case string:
		out[prefix] = v
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// normalizeKey rewrites a[0] index syntax into the dotted form a.0.
func normalizeKey(key string) string {
	return indexPattern.ReplaceAllString(key, ".$1")
}

// resolve returns the table for locale, falling back to the default locale.
func (r *Resolver) resolve(locale string) map[string]string {
	if t, ok := r.tables[locale]; ok {
		return t
	}
	return r.tables[r.defaultLocale]
}

// Lookup returns the string stored under key. A missing key yields the key
// itself so broken translations stay visible.
func (r *Resolver) Lookup(locale, key string) string {
	if s, ok := r.resolve(locale)[normalizeKey(key)]; ok {
		return s
	}
	return key
}

// Format looks key up and substitutes {{name}} placeholders from vars.
func (r *Resolver) Format(locale, key string, vars map[string]string) string {
	s := r.Lookup(locale, key)
	for name, value := range vars {
		s = strings.ReplaceAll(s, "{{"+name+"}}", value)
	}
	return s
}

// Count formats a pluralized key such as "a.b" by appending the plural form
// of n and substituting {{count}}.
func (r *Resolver) Count(locale, key string, n int) string {
	return r.Format(locale, key+"."+PluralForm(n), map[string]string{"count": strconv.Itoa(n)})
}

// Has reports whether locale has its own table.
func (r *Resolver) Has(locale string) bool {
	_, ok := r.tables[locale]
	return ok
}

// Default returns the fallback locale code.
func (r *Resolver) Default() string {
	return r.defaultLocale
}

// Table returns a copy of the flat table for locale.
func (r *Resolver) Table(locale string) map[string]string {
	src := r.resolve(locale)
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Supported lists the available locale codes in sorted order.
func (r *Resolver) Supported() []string {
	codes := make([]string, 0, len(r.tables))
	for code := range r.tables {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// PluralForm picks the Slavic-style plural bucket for n: "one", "few" or "many".
func PluralForm(n int) string {
	if n < 0 {
		n = -n
	}
	mod10, mod100 := n%10, n%100
	switch {
	case mod10 == 1 && mod100 != 11:
		return "one"
	case mod10 >= 2 && mod10 <= 4 && (mod100 < 12 || mod100 > 14):
		return "few"
	default:
		return "many"
	}
}

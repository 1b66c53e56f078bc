package domain

// OptionKind names a curated option set.
type OptionKind string

const (
	OptionCategories OptionKind = "categories"
	OptionLevels     OptionKind = "levels"
	OptionDurations  OptionKind = "durations"
	OptionTags       OptionKind = "tags"
	OptionLanguages  OptionKind = "languages"
)

// OptionKinds lists every curated set.
var OptionKinds = []OptionKind{OptionCategories, OptionLevels, OptionDurations, OptionTags, OptionLanguages}

// Valid reports whether k is a known option kind.
func (k OptionKind) Valid() bool {
	for _, known := range OptionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Option is a curated value with its display label.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Catalog maps option kinds to their loaded values. A kind missing from
// the catalog has not been loaded yet.
type Catalog map[OptionKind][]Option

// Loaded reports whether values for kind are available.
func (c Catalog) Loaded(kind OptionKind) bool {
	return len(c[kind]) > 0
}

// Contains reports whether value is a member of kind.
func (c Catalog) Contains(kind OptionKind, value string) bool {
	for _, o := range c[kind] {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Values returns the raw values for kind.
func (c Catalog) Values(kind OptionKind) []string {
	opts := c[kind]
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Value)
	}
	return out
}

// Label returns the display label for value, falling back to the value.
func (c Catalog) Label(kind OptionKind, value string) string {
	for _, o := range c[kind] {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

package entity

// RuleKind identifies how a field value is read from a detail page.
type RuleKind string

const (
	RuleText      RuleKind = "text"
	RuleAttr      RuleKind = "attr"
	RuleStyleAttr RuleKind = "styleAttr"
)

// StylePattern brackets the value inside an inline style string.
type StylePattern struct {
	Prefix string `yaml:"prefix" json:"prefix"`
	Suffix string `yaml:"suffix" json:"suffix"`
}

// DefaultStylePattern matches the `background:url(...)` form.
var DefaultStylePattern = StylePattern{Prefix: "background:url(", Suffix: ")"}

// Rule describes how one field is extracted. Exactly one of Text, Attr or StyleAttr
// holds the CSS selector; the populated one decides the rule kind.
type Rule struct {
	Field     string        `yaml:"field" json:"field"`
	Text      string        `yaml:"text,omitempty" json:"text,omitempty"`
	Attr      string        `yaml:"attr,omitempty" json:"attr,omitempty"`
	Attribute string        `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	StyleAttr string        `yaml:"styleAttr,omitempty" json:"styleAttr,omitempty"`
	Pattern   *StylePattern `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	// Post-processing applied to text values after normalization.
	StripSpaces bool     `yaml:"strip_spaces,omitempty" json:"strip_spaces,omitempty"`
	Remove      []string `yaml:"remove,omitempty" json:"remove,omitempty"`
}

// Kind returns the rule kind, or "" when no selector is set.
func (r Rule) Kind() RuleKind {
	switch {
	case r.Text != "":
		return RuleText
	case r.Attr != "":
		return RuleAttr
	case r.StyleAttr != "":
		return RuleStyleAttr
	}
	return ""
}

// Selector returns the CSS selector of whichever kind is set.
func (r Rule) Selector() string {
	switch r.Kind() {
	case RuleText:
		return r.Text
	case RuleAttr:
		return r.Attr
	case RuleStyleAttr:
		return r.StyleAttr
	}
	return ""
}

// SelectorMap is an ordered list of field rules for one category.
type SelectorMap []Rule

// Lookup returns the rule for a field.
func (m SelectorMap) Lookup(field string) (Rule, bool) {
	for _, r := range m {
		if r.Field == field {
			return r, true
		}
	}
	return Rule{}, false
}

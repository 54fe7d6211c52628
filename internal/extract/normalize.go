package extract

import "strings"

var controlStripper = strings.NewReplacer("\n", "", "\t", "")

// NormalizeText trims surrounding whitespace and deletes every newline and tab.
// Embedded "\n" and "\t" are removed, not replaced with a space.
func NormalizeText(s string) string {
	return controlStripper.Replace(strings.TrimSpace(s))
}

// ParseStyleURL returns the value between prefix and suffix inside an inline style string.
// It returns false when the prefix does not occur. A missing suffix takes the rest of the string.
func ParseStyleURL(style string, prefix, suffix string) (string, bool) {
	i := strings.Index(style, prefix)
	if i < 0 {
		return "", false
	}
	rest := style[i+len(prefix):]
	if j := strings.Index(rest, suffix); j >= 0 {
		rest = rest[:j]
	}
	return rest, true
}

func postProcess(s string, remove []string, stripSpaces bool) string {
	for _, r := range remove {
		if r != "" {
			s = strings.ReplaceAll(s, r, "")
		}
	}
	if stripSpaces {
		s = strings.ReplaceAll(s, " ", "")
	}
	return s
}

package catalog

import (
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// CanonURL reduces an image URL to scheme, lowercased host and path. The
// query string (CDN cache busters) is dropped. Inputs without a host or path
// are returned unchanged.
func CanonURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Path == "" {
		return raw
	}
	scheme := "https"
	if u.Scheme == "http" {
		scheme = "http"
	}
	return scheme + "://" + strings.ToLower(u.Host) + u.Path
}

// CanonName canonicalizes an option name or value for key building.
func CanonName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// VariantKey builds the canonical variant key from option names and the
// variant's values in the same order, e.g. "color=red|size=m".
func VariantKey(optionNames, values []string) string {
	parts := make([]string, len(optionNames))
	for i, name := range optionNames {
		val := ""
		if i < len(values) {
			val = values[i]
		}
		parts[i] = CanonName(name) + "=" + CanonName(val)
	}
	return strings.Join(parts, "|")
}

// SelectedOption is a name/value pair as reported by the remote platform.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// KeyFromSelectedOptions builds the canonical key of a remote variant,
// ordering its selected options by optionNames. Missing options contribute an
// empty value.
func KeyFromSelectedOptions(optionNames []string, selected []SelectedOption) string {
	byName := make(map[string]string, len(selected))
	for _, so := range selected {
		byName[CanonName(so.Name)] = CanonName(so.Value)
	}
	parts := make([]string, len(optionNames))
	for i, name := range optionNames {
		n := CanonName(name)
		parts[i] = n + "=" + byName[n]
	}
	return strings.Join(parts, "|")
}

// OptionValue is an option name/value pair carrying the source's display
// casing.
type OptionValue struct {
	OptionName string `json:"optionName"`
	Name       string `json:"name"`
}

// DisplayOptionValues recovers the display casing of a variant's option
// values from the product options. Empty values are skipped.
func DisplayOptionValues(options []Option, values []string) []OptionValue {
	out := make([]OptionValue, 0, len(options))
	for i, opt := range options {
		if i >= len(values) {
			break
		}
		want := CanonName(values[i])
		if want == "" {
			continue
		}
		display := strings.TrimSpace(values[i])
		for _, candidate := range opt.Values {
			if CanonName(candidate) == want {
				display = candidate
				break
			}
		}
		out = append(out, OptionValue{OptionName: opt.Name, Name: display})
	}
	return out
}

// NormalizeTags trims, drops empties, removes duplicates and sorts
// naturally ignoring case.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		for _, part := range strings.Split(t, ",") {
			s := strings.TrimSpace(part)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	col := collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
	sort.SliceStable(out, func(i, j int) bool {
		if c := col.CompareString(out[i], out[j]); c != 0 {
			return c < 0
		}
		return out[i] < out[j]
	})
	return out
}

// SplitTags splits a comma separated tag string and normalizes it.
func SplitTags(s string) []string {
	return NormalizeTags([]string{s})
}

// CanonPrice renders a price with two decimals so that "12", "12.0" and
// "12.00" compare equal. Non numeric input is returned trimmed.
func CanonPrice(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.StringFixed(2)
}

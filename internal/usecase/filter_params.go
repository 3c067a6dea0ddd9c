package usecase

import (
	"net/url"
	"strconv"
	"strings"
)

const maxFilterLimit = 50

// ParsedFilters is a FilterSpec read from query parameters, plus the search
// text to use when the caller gave filters but no query.
type ParsedFilters struct {
	FilterSpec
	FallbackQuery string
}

// ParseFilterSpec reads filter parameters, accepting the aliases clients use.
func ParseFilterSpec(values url.Values) ParsedFilters {
	var out ParsedFilters
	get := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(values.Get(k)); v != "" {
				return v
			}
		}
		return ""
	}

	out.Category = get("category", "categories")
	out.Subcategory = get("subcategory", "subCategory", "sub_category")
	out.Brand = get("brand")
	if csv := get("tags", "labels", "attributes"); csv != "" {
		for _, part := range strings.Split(csv, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out.Tags = append(out.Tags, part)
			}
		}
	}
	if lactose, ok := parseBooleanFlag(get("lactoseFree", "lactose_free")); ok {
		out.LactoseFree = lactose
	}

	fatLo, fatHi := parseRange(get("fatPct", "fat_pct"))
	out.FatMin = firstPtr(parseNumberParam(get("fatPctMin", "fat_min")), fatLo)
	out.FatMax = firstPtr(parseNumberParam(get("fatPctMax", "fat_max")), fatHi)

	out.SizeMin = parseNumberParam(get("unitMin", "sizeMin", "size_min"))
	out.SizeMax = parseNumberParam(get("unitMax", "sizeMax", "size_max"))
	out.SizeMode = parseSizeMode(get("unitType", "sizeUnit", "size_mode"))

	if n, err := strconv.Atoi(get("limit", "size")); err == nil {
		out.Limit = clampInt(n, 1, maxFilterLimit)
	}

	var tokens []string
	for _, t := range []string{out.Category, out.Subcategory, out.Brand} {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	if out.LactoseFree {
		tokens = append(tokens, "laktosefri")
	}
	if len(tokens) == 0 && (out.FatMin != nil || out.FatMax != nil) {
		tokens = append(tokens, "fett")
	}
	out.FallbackQuery = strings.Join(tokens, " ")
	return out
}

// Exposed returns the applied filters for echoing back to clients. Unset,
// empty and false values are omitted.
func (f FilterSpec) Exposed() map[string]any {
	out := map[string]any{}
	setText := func(key, v string) {
		if v != "" {
			out[key] = v
		}
	}
	setNum := func(key string, v *float64) {
		if v != nil {
			out[key] = *v
		}
	}
	setText("category", f.Category)
	setText("subcategory", f.Subcategory)
	setText("brand", f.Brand)
	if len(f.Tags) > 0 {
		out["tags"] = f.Tags
	}
	if f.LactoseFree {
		out["lactoseFree"] = true
	}
	setNum("fatMin", f.FatMin)
	setNum("fatMax", f.FatMax)
	if f.SizeMode != "" && f.SizeMode != SizeModeAuto {
		out["sizeMode"] = string(f.SizeMode)
	}
	setNum("sizeMin", f.SizeMin)
	setNum("sizeMax", f.SizeMax)
	if f.Limit > 0 {
		out["limit"] = f.Limit
	}
	return out
}

func parseSizeMode(s string) SizeMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "volume", "vol", "liter", "litre", "l":
		return SizeModeVolume
	case "mass", "weight", "kg", "g", "gram", "grams", "kilogram":
		return SizeModeMass
	default:
		return SizeModeAuto
	}
}

// parseRange reads "a-b" or a single number meaning a-a.
func parseRange(s string) (*float64, *float64) {
	if s == "" {
		return nil, nil
	}
	if parts := strings.Split(s, "-"); len(parts) == 2 {
		lo, okLo := safeNumber(parts[0])
		hi, okHi := safeNumber(parts[1])
		if okLo && okHi {
			return &lo, &hi
		}
	}
	if n, ok := safeNumber(s); ok {
		return &n, floatPtr(n)
	}
	return nil, nil
}

func parseNumberParam(s string) *float64 {
	if s == "" {
		return nil
	}
	if n, ok := safeNumber(s); ok {
		return &n
	}
	return nil
}

func firstPtr(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

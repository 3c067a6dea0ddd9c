package usecase

import (
	"strings"

	"github.com/smartshop/backend/internal/domain"
)

// SizeMode selects which package measure size filters compare against.
type SizeMode string

const (
	SizeModeAuto   SizeMode = "auto"
	SizeModeMass   SizeMode = "mass"
	SizeModeVolume SizeMode = "volume"
)

// FilterSpec is a set of structured constraints. Zero values mean "no constraint".
type FilterSpec struct {
	Category    string
	Subcategory string
	Brand       string
	Tags        []string
	LactoseFree bool
	FatMin      *float64
	FatMax      *float64
	SizeMode    SizeMode
	SizeMin     *float64
	SizeMax     *float64
	Limit       int
}

// Active reports whether any constraint other than Limit is set.
func (f FilterSpec) Active() bool {
	return f.Category != "" || f.Subcategory != "" || f.Brand != "" || len(f.Tags) > 0 ||
		f.LactoseFree || f.FatMin != nil || f.FatMax != nil || f.SizeMin != nil || f.SizeMax != nil
}

// ApplyFilters keeps the products that pass every constraint, in input order,
// truncated to spec.Limit when positive.
func ApplyFilters(products []domain.NormalizedProduct, spec FilterSpec) []domain.NormalizedProduct {
	out := make([]domain.NormalizedProduct, 0, len(products))
	for _, p := range products {
		if spec.Active() && !spec.Matches(&p) {
			continue
		}
		out = append(out, p)
		if spec.Limit > 0 && len(out) == spec.Limit {
			break
		}
	}
	return out
}

// Matches reports whether one product passes every constraint.
func (f FilterSpec) Matches(p *domain.NormalizedProduct) bool {
	if f.Category != "" {
		if !containsFold(p.Categories, f.Category) && !containsFold(ptrSlice(p.Category), f.Category) {
			return false
		}
	}
	if f.Subcategory != "" {
		if !containsFold(p.Subcategories, f.Subcategory) &&
			!containsFold(p.Categories, f.Subcategory) &&
			!containsFold(ptrSlice(p.Subcategory), f.Subcategory) {
			return false
		}
	}
	if f.Brand != "" && !containsFold([]string{p.Brand}, f.Brand) {
		return false
	}

	tags := productTags(p)
	for _, tag := range f.Tags {
		if !containsFold(tags, tag) {
			return false
		}
	}
	if f.LactoseFree && !p.Attributes.LactoseFree && !anyMatch(tags, lactoseTagRegex) {
		return false
	}

	if f.FatMin != nil || f.FatMax != nil {
		if !inRange(p.Attributes.FatPct, f.FatMin, f.FatMax) {
			return false
		}
	}
	if f.SizeMin != nil || f.SizeMax != nil {
		if !inRange(f.sizeMeasure(p), f.SizeMin, f.SizeMax) {
			return false
		}
	}
	return true
}

func (f FilterSpec) sizeMeasure(p *domain.NormalizedProduct) *float64 {
	switch f.SizeMode {
	case SizeModeMass:
		return p.PackageInfo.Kilograms
	case SizeModeVolume:
		return p.PackageInfo.Liters
	default:
		if p.PackageInfo.Liters != nil {
			return p.PackageInfo.Liters
		}
		return p.PackageInfo.Kilograms
	}
}

// inRange fails when the measure is missing.
func inRange(v, lo, hi *float64) bool {
	if v == nil {
		return false
	}
	if lo != nil && *v < *lo {
		return false
	}
	if hi != nil && *v > *hi {
		return false
	}
	return true
}

func productTags(p *domain.NormalizedProduct) []string {
	if len(p.TagsNormalized) > 0 {
		return p.TagsNormalized
	}
	return normalizeTags(p.Tags)
}

// containsFold reports whether any value contains needle, ignoring case.
func containsFold(values []string, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func ptrSlice(s *string) []string {
	if s == nil {
		return nil
	}
	return []string{*s}
}

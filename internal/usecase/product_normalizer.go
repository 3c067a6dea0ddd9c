package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/smartshop/backend/internal/domain"
)

var (
	lactoseTagRegex = regexp.MustCompile(`(?i)laktosefri|lactose[\s-]?free`)
	organicTagRegex = regexp.MustCompile(`(?i)økologisk|okologisk|organic|bio|eco`)
	unitSuffixRegex = regexp.MustCompile(`/\s*([a-zA-Z]+)`)
)

// NormalizeContext carries request-level information for normalization.
type NormalizeContext struct {
	// EAN is used when a record omits its own barcode.
	EAN string
	// Groups is an optional chain-code allow-list applied by NormalizeProducts.
	Groups []string
}

var (
	priceAccessors = []accessor{
		at("current_price", "price"),
		at("current_price"),
		at("price", "current"),
		at("currentPrice"),
		at("price"),
	}
	sizeTextAccessors = []accessor{
		at("size"), at("size_text"), at("sizeText"), at("packageSize"), at("package_size"),
		at("package"), at("packaging"), at("item_size"), at("itemSize"), at("unit_size"), at("unitSize"),
	}
	weightAccessors = []accessor{
		at("weight"), at("weight", "value"), at("net_weight"), at("netWeight"),
		at("package_weight"), at("packageWeight"),
	}
	weightUnitAccessors = []accessor{
		at("weight_unit"), at("weightUnit"), at("weight", "unit"), at("weight", "unit_name"), at("weight", "measurement"),
	}
	unitValueAccessors = []accessor{
		at("unit_price"), at("unitPrice"), at("price_per_unit"), at("pricePerUnit"), at("value"), at("amount"),
	}
	unitQuantityAccessors = []accessor{
		at("unit_quantity"), at("unitQuantity"), at("unit_qty"), at("unit_price_quantity"), at("quantity"), at("unit", "quantity"),
	}
	unitQuantityFallbackAccessors = []accessor{
		at("unit_price_qty"), at("unitPriceQty"), at("unitQuantityValue"),
	}
	unitNameAccessors = []accessor{
		at("unit_price_unit"), at("unitPriceUnit"), at("unit_unit"), at("unit"), at("unit_name"), at("unit", "name"), at("unit", "unit"),
	}
	unitDisplayAccessors = []accessor{
		at("unit_price_text"), at("unitPriceText"), at("unit_price_display"), at("unitPriceDisplay"),
		at("price_per_unit_text"), at("pricePerUnitText"), at("unit_price_pretty"), at("unit_price_formatted"), at("unit", "display"),
	}
	unitFormattedAccessors = []accessor{
		at("unit_price_formatted"), at("unitPriceFormatted"), at("price_per_unit_formatted"),
		at("pricePerUnitFormatted"), at("unit_price_string"), at("price_per_unit_string"),
	}
	fatAccessors = []accessor{
		at("fat_pct"), at("fatPercentage"), at("fat"), at("nutrition", "fat"), at("nutrition", "fat_pct"),
		at("nutritional_values", "fat"), at("nutritional_values", "fat_pct"), at("nutritional", "fat"), at("fat_content"),
	}
	lactoseAccessors = []accessor{
		at("lactose_free"), at("lactoseFree"), at("attributes", "lactoseFree"), at("attributes", "lactose_free"),
	}
	organicAccessors = []accessor{
		at("organic"), at("isOrganic"), at("attributes", "organic"), at("attributes", "isOrganic"),
	}
	storeNameAccessors = []accessor{
		at("store", "name"), at("storeName"), at("store"), at("retailer"),
	}
	groupAccessors = []accessor{
		at("store", "group"), at("group"), at("store", "code"),
	}
)

// unitPriceSources lists the sub-objects that may carry a unit price, in order.
var unitPriceSources = []string{"current_price", "price", "pricing", "currentPrice"}

// NormalizeProduct converts one upstream record into its canonical form.
// Malformed or missing fields degrade to nil or empty values.
func NormalizeProduct(raw domain.RawProduct, nctx NormalizeContext) domain.NormalizedProduct {
	m := map[string]any(raw)
	if m == nil {
		m = map[string]any{}
	}

	pkg := derivePackageInfo(m)
	price := extractPrice(m)
	pricing := deriveUnitPricing(m, price, pkg)

	storeRaw, _ := firstString(m, storeNameAccessors...)
	groupRaw, _ := firstString(m, groupAccessors...)
	store, group := CanonicalizeStore(storeRaw, groupRaw)

	categories, subcategories := extractCategories(m)
	tags := extractTags(m)
	normalizedTags := normalizeTags(tags)

	out := domain.NormalizedProduct{
		Name:           textOrEmpty(m, "name"),
		Brand:          textOrEmpty(m, "brand"),
		EAN:            productEAN(m, nctx.EAN),
		Price:          price,
		Store:          strPtr(store),
		Group:          strPtr(group),
		Categories:     categories,
		Subcategories:  subcategories,
		Tags:           tags,
		TagsNormalized: normalizedTags,
		Attributes:     deriveAttributes(m, normalizedTags),
		PackageInfo:    pkg,
		UnitPricing:    pricing,
	}
	if pkg.Raw != nil {
		out.Size = *pkg.Raw
	}
	if id, ok := firstString(m, at("id"), at("productId")); ok {
		out.ID = &id
	}
	if updated, ok := firstString(m, at("updatedAt"), at("updated_at"), at("price", "updatedAt")); ok {
		out.UpdatedAt = &updated
	}
	if len(categories) > 0 {
		out.Category = &categories[0]
	}
	if len(subcategories) > 0 {
		out.Subcategory = &subcategories[0]
	}

	// The explicit unit price decides the dimension; the package only fills in
	// when it gave none.
	out.PricePerKg = pricing.PricePerKg
	out.PricePerLiter = pricing.PricePerLiter
	if out.PricePerKg == nil && out.PricePerLiter == nil {
		out.PricePerKg = perMeasure(price, pkg.Kilograms)
		out.PricePerLiter = perMeasure(price, pkg.Liters)
	}
	return out
}

// NormalizeProducts normalizes a batch. Records whose chain is outside
// nctx.Groups are dropped when an allow-list is given.
func NormalizeProducts(raws []domain.RawProduct, nctx NormalizeContext) []domain.NormalizedProduct {
	allowed := make(map[string]struct{}, len(nctx.Groups))
	for _, g := range nctx.Groups {
		if g = strings.ToUpper(strings.TrimSpace(g)); g != "" {
			allowed[g] = struct{}{}
		}
	}

	out := make([]domain.NormalizedProduct, 0, len(raws))
	for _, raw := range raws {
		p := NormalizeProduct(raw, nctx)
		if len(allowed) > 0 {
			if _, ok := allowed[strings.ToUpper(p.GroupCode())]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// extractPrice reads the shelf price. Only values that are already numbers count.
func extractPrice(m map[string]any) *float64 {
	if n, ok := firstNumeric(m, priceAccessors...); ok {
		return &n
	}
	return nil
}

func derivePackageInfo(m map[string]any) domain.PackageInfo {
	raw, hasRaw := firstText(m, sizeTextAccessors...)

	var quantity *float64
	var unit, unitRaw string
	if hasRaw {
		unitRaw = raw
		if parsed := ParseSize(raw); parsed != nil {
			quantity = parsed.Quantity
			if parsed.Unit != nil {
				unit = *parsed.Unit
			}
			if parsed.UnitRaw != nil {
				unitRaw = *parsed.UnitRaw
			}
		}
	}

	weightUnitText, _ := firstString(m, weightUnitAccessors...)
	weightUnit := NormalizeUnit(weightUnitText)
	if quantity == nil {
		if w, ok := firstNumber(m, weightAccessors...); ok {
			quantity = &w
			if weightUnit != "" {
				unit = weightUnit
			}
		}
	}
	if unit == "" {
		unit = weightUnit
	}

	info := domain.PackageInfo{
		Quantity: quantity,
		Unit:     strPtr(unit),
		UnitRaw:  strPtr(unitRaw),
	}
	switch {
	case hasRaw:
		info.Raw = &raw
	case quantity != nil && unit != "":
		info.Raw = strPtr(strconv.FormatFloat(*quantity, 'f', -1, 64) + " " + unit)
	}
	if quantity != nil {
		if kg, ok := ToKilograms(*quantity, unit); ok {
			info.Kilograms = finitePtr(kg)
		}
		if l, ok := ToLiters(*quantity, unit); ok {
			info.Liters = finitePtr(l)
		}
	}
	return info
}

func deriveUnitPricing(m map[string]any, price *float64, pkg domain.PackageInfo) domain.UnitPricing {
	for _, source := range unitPriceSources {
		obj, ok := objectAt(m, source)
		if !ok {
			continue
		}
		if pricing, ok := unitPricingFromObject(obj, source); ok {
			return pricing
		}
	}

	pricing := domain.UnitPricing{
		Unit:          pkg.Unit,
		UnitRaw:       pkg.UnitRaw,
		PricePerKg:    perMeasure(price, pkg.Kilograms),
		PricePerLiter: perMeasure(price, pkg.Liters),
	}
	if pkg.Unit != nil {
		pricing.Source = strPtr(domain.UnitPriceSourceFallbackPackage)
	}
	return pricing
}

func unitPricingFromObject(obj map[string]any, source string) (domain.UnitPricing, bool) {
	value, hasValue := firstNumber(obj, unitValueAccessors...)
	unitRaw, _ := firstString(obj, unitNameAccessors...)
	display, _ := firstString(obj, unitDisplayAccessors...)

	if !hasValue {
		formatted := make([]string, 0, len(unitFormattedAccessors)+1)
		for _, get := range unitFormattedAccessors {
			if v, ok := get(obj); ok {
				if s, ok := safeString(v); ok {
					formatted = append(formatted, s)
				}
			}
		}
		if display != "" {
			formatted = append(formatted, display)
		}
		for _, candidate := range formatted {
			n, ok := extractNumber(candidate)
			if !ok {
				continue
			}
			value, hasValue = n, true
			if display == "" {
				display = candidate
			}
			if unitRaw == "" {
				if sm := unitSuffixRegex.FindStringSubmatch(candidate); sm != nil {
					unitRaw = sm[1]
				}
			}
			break
		}
	}
	if !hasValue {
		return domain.UnitPricing{}, false
	}

	quantity, ok := firstNumber(obj, unitQuantityAccessors...)
	if !ok || quantity <= 0 {
		quantity, ok = firstNumber(obj, unitQuantityFallbackAccessors...)
		if !ok || quantity <= 0 {
			quantity = 1
		}
	}

	unit := NormalizeUnit(unitRaw)
	if unit == "" {
		if unitObj, ok := objectAt(obj, "unit"); ok {
			if s, ok := firstString(unitObj, at("unit"), at("name"), at("type")); ok {
				unit = NormalizeUnit(s)
			}
		}
	}
	if unit == "" && display != "" {
		if sm := unitSuffixRegex.FindStringSubmatch(display); sm != nil {
			unit = NormalizeUnit(sm[1])
		}
	}

	perUnit := value / quantity
	pricing := domain.UnitPricing{
		Value:        floatPtr(value),
		Quantity:     floatPtr(quantity),
		Unit:         strPtr(unit),
		UnitRaw:      strPtr(unitRaw),
		Display:      strPtr(display),
		PricePerUnit: finitePtr(perUnit),
		Source:       strPtr(source),
	}
	if kg, ok := PricePerKg(perUnit, unit); ok {
		pricing.PricePerKg = finitePtr(kg)
	}
	if l, ok := PricePerLiter(perUnit, unit); ok {
		pricing.PricePerLiter = finitePtr(l)
	}
	return pricing, true
}

// extractCategories collects category and subcategory names, first seen first.
func extractCategories(m map[string]any) ([]string, []string) {
	categories := newOrderedSet()
	subcategories := newOrderedSet()

	for _, get := range []accessor{at("category"), at("category_name"), at("categoryName"), at("category", "name")} {
		categories.addValue(get(m))
	}
	categories.addEntries(m["categories"])

	for _, get := range []accessor{at("subcategory"), at("sub_category"), at("subcategory", "name")} {
		subcategories.addValue(get(m))
	}
	subcategories.addEntries(m["subcategories"])

	if path, ok := m["category_path"].([]any); ok {
		for i, entry := range path {
			if i == 0 {
				categories.addValue(entry, true)
			} else {
				subcategories.addValue(entry, true)
			}
		}
	}
	return categories.items, subcategories.items
}

func extractTags(m map[string]any) []string {
	tags := newOrderedSet()
	for _, get := range []accessor{at("tags"), at("labels"), at("attributes", "tags"), at("attributes", "labels")} {
		if v, ok := get(m); ok {
			if list, ok := v.([]any); ok {
				for _, entry := range list {
					tags.addValue(entry, true)
				}
			}
		}
	}
	tags.addValue(at("tag")(m))
	tags.addValue(at("label")(m))
	return tags.items
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, strings.ToLower(norm.NFC.String(tag)))
		}
	}
	return out
}

func deriveAttributes(m map[string]any, normalizedTags []string) domain.ProductAttributes {
	var attrs domain.ProductAttributes

	lactose, hasLactose := firstFlag(m, lactoseAccessors...)
	attrs.LactoseFree = (hasLactose && lactose) || anyMatch(normalizedTags, lactoseTagRegex)

	if fat, ok := firstNumber(m, fatAccessors...); ok {
		attrs.FatPct = &fat
	}

	// An explicit organic=false wins over tag text.
	if organic, ok := firstFlag(m, organicAccessors...); ok {
		attrs.IsOrganic = organic
	} else {
		attrs.IsOrganic = anyMatch(normalizedTags, organicTagRegex)
	}
	return attrs
}

func productEAN(m map[string]any, fallback string) string {
	if s, ok := firstString(m, at("ean")); ok {
		if cleaned := domain.CleanEAN(s); cleaned != "" {
			return cleaned
		}
	}
	return domain.CleanEAN(fallback)
}

func textOrEmpty(m map[string]any, key string) string {
	s, _ := firstString(m, at(key))
	return s
}

// perMeasure divides a price by a positive measure.
func perMeasure(price, measure *float64) *float64 {
	if price == nil || measure == nil || *measure <= 0 {
		return nil
	}
	return finitePtr(*price / *measure)
}

func anyMatch(values []string, re *regexp.Regexp) bool {
	for _, v := range values {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

// orderedSet keeps the first occurrence of each non-blank string.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]struct{}{}, items: []string{}}
}

func (s *orderedSet) addValue(v any, present bool) {
	if !present {
		return
	}
	str, ok := safeString(v)
	if !ok {
		return
	}
	str = norm.NFC.String(str)
	if _, dup := s.seen[str]; dup {
		return
	}
	s.seen[str] = struct{}{}
	s.items = append(s.items, str)
}

// addEntries adds each element of a list, using an object's name when present.
func (s *orderedSet) addEntries(v any) {
	list, ok := v.([]any)
	if !ok {
		return
	}
	for _, entry := range list {
		if obj, ok := asObject(entry); ok {
			s.addValue(field(obj, "name"))
			continue
		}
		s.addValue(entry, true)
	}
}

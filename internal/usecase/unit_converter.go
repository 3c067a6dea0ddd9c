package usecase

import "strings"

// Canonical unit tokens.
const (
	UnitKilogram   = "kg"
	UnitGram       = "g"
	UnitHectogram  = "hg"
	UnitMilligram  = "mg"
	UnitPound      = "lb"
	UnitOunce      = "oz"
	UnitLiter      = "l"
	UnitDeciliter  = "dl"
	UnitCentiliter = "cl"
	UnitMilliliter = "ml"
	UnitPiece      = "stk"
)

// unitSynonyms maps English and Norwegian spellings to canonical tokens.
var unitSynonyms = map[string]string{
	"kilogram": UnitKilogram, "kilograms": UnitKilogram, "kilo": UnitKilogram, "kilos": UnitKilogram,
	"kg": UnitKilogram,
	"gram": UnitGram, "grams": UnitGram, "gramm": UnitGram, "gr": UnitGram, "g": UnitGram,
	"hektogram": UnitHectogram, "hektogrammer": UnitHectogram, "hectogram": UnitHectogram, "hg": UnitHectogram,
	"milligram": UnitMilligram, "milligrams": UnitMilligram, "mg": UnitMilligram,
	"liter": UnitLiter, "litre": UnitLiter, "liters": UnitLiter, "litres": UnitLiter, "ltr": UnitLiter,
	"l": UnitLiter,
	"deciliter": UnitDeciliter, "decilitre": UnitDeciliter, "dl": UnitDeciliter,
	"centiliter": UnitCentiliter, "centilitre": UnitCentiliter, "cl": UnitCentiliter,
	"milliliter": UnitMilliliter, "millilitre": UnitMilliliter, "ml": UnitMilliliter,
	"stk": UnitPiece, "st": UnitPiece, "stykk": UnitPiece, "stykker": UnitPiece,
	"piece": UnitPiece, "pieces": UnitPiece, "pk": UnitPiece, "pack": UnitPiece,
	"pakke": UnitPiece, "pakker": UnitPiece, "pose": UnitPiece,
	"lb": UnitPound, "lbs": UnitPound, "pound": UnitPound, "pounds": UnitPound,
	"oz": UnitOunce, "ounce": UnitOunce, "ounces": UnitOunce,
}

// factor expresses a unit as mul/div of the dimension's base unit.
type factor struct {
	mul float64
	div float64
}

var massFactors = map[string]factor{
	UnitKilogram:  {1, 1},
	UnitGram:      {1, 1000},
	UnitHectogram: {1, 10},
	UnitMilligram: {1, 1_000_000},
	UnitPound:     {0.45359237, 1},
	UnitOunce:     {0.0283495231, 1},
}

var volumeFactors = map[string]factor{
	UnitLiter:      {1, 1},
	UnitDeciliter:  {1, 10},
	UnitCentiliter: {1, 100},
	UnitMilliliter: {1, 1000},
}

// NormalizeUnit maps a unit spelling to its canonical token. Unknown units are
// returned lower-cased; blank input returns "".
func NormalizeUnit(unit string) string {
	key := strings.ToLower(strings.TrimSpace(unit))
	if key == "" {
		return ""
	}
	if canonical, ok := unitSynonyms[key]; ok {
		return canonical
	}
	return key
}

// IsMassUnit reports whether unit is a canonical mass token.
func IsMassUnit(unit string) bool {
	_, ok := massFactors[unit]
	return ok
}

// IsVolumeUnit reports whether unit is a canonical volume token.
func IsVolumeUnit(unit string) bool {
	_, ok := volumeFactors[unit]
	return ok
}

// ToKilograms converts a quantity of a mass unit to kilograms.
func ToKilograms(quantity float64, unit string) (float64, bool) {
	f, ok := massFactors[unit]
	if !ok {
		return 0, false
	}
	return quantity * f.mul / f.div, true
}

// ToLiters converts a quantity of a volume unit to liters.
func ToLiters(quantity float64, unit string) (float64, bool) {
	f, ok := volumeFactors[unit]
	if !ok {
		return 0, false
	}
	return quantity * f.mul / f.div, true
}

// PricePerKg converts a price per one unit into a price per kilogram.
func PricePerKg(pricePerUnit float64, unit string) (float64, bool) {
	f, ok := massFactors[unit]
	if !ok {
		return 0, false
	}
	return pricePerUnit * f.div / f.mul, true
}

// PricePerLiter converts a price per one unit into a price per liter.
func PricePerLiter(pricePerUnit float64, unit string) (float64, bool) {
	f, ok := volumeFactors[unit]
	if !ok {
		return 0, false
	}
	return pricePerUnit * f.div / f.mul, true
}

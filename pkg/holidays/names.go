package holidays

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// GoodFriday is never a P3 holiday even though it is national.
const GoodFriday = "Viernes Santo"

// canonicalNames maps folded names (lowercase, no diacritics, single spaces)
// to the display name used across sources.
var canonicalNames = map[string]string{
	"ano nuevo":                       "Año Nuevo",
	"epifania del senor":              "Epifanía del Señor",
	"viernes santo":                   GoodFriday,
	"fiesta del trabajo":              "Fiesta del Trabajo",
	"asuncion de la virgen":           "Asunción de la Virgen",
	"fiesta nacional de espana":       "Fiesta Nacional de España",
	"todos los santos":                "Todos los Santos",
	"dia de la constitucion":          "Día de la Constitución",
	"dia de la constitucion espanola": "Día de la Constitución",
	"inmaculada concepcion":           "Inmaculada Concepción",
	"natividad del senor":             "Natividad del Señor",

	// spellings used by the national holiday table
	"new year's day":           "Año Nuevo",
	"new years day":            "Año Nuevo",
	"epiphany":                 "Epifanía del Señor",
	"good friday":              GoodFriday,
	"labour day":               "Fiesta del Trabajo",
	"labor day":                "Fiesta del Trabajo",
	"dia del trabajador":       "Fiesta del Trabajo",
	"assumption of mary":       "Asunción de la Virgen",
	"assumption day":           "Asunción de la Virgen",
	"national day":             "Fiesta Nacional de España",
	"national day of spain":    "Fiesta Nacional de España",
	"fiesta nacional":          "Fiesta Nacional de España",
	"all saints' day":          "Todos los Santos",
	"all saints day":           "Todos los Santos",
	"constitution day":         "Día de la Constitución",
	"immaculate conception":    "Inmaculada Concepción",
	"christmas day":            "Natividad del Señor",
	"christmas":                "Natividad del Señor",
	"navidad":                  "Natividad del Señor",
	"dia de navidad":           "Natividad del Señor",
	"epifania":                 "Epifanía del Señor",
	"dia de reyes":             "Epifanía del Señor",
	"reyes":                    "Epifanía del Señor",
	"dia de reyes magos":       "Epifanía del Señor",
	"dia de la hispanidad":     "Fiesta Nacional de España",
	"dia de todos los santos":  "Todos los Santos",
	"la inmaculada concepcion": "Inmaculada Concepción",
	"dia de la inmaculada":     "Inmaculada Concepción",
	"asuncion":                 "Asunción de la Virgen",
}

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// fold lowercases text, strips diacritics and collapses whitespace.
func fold(text string) string {
	stripped, _, err := transform.String(foldTransformer, text)
	if err != nil {
		stripped = text
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// CanonicalName maps a source holiday name to its display name. Unknown names
// are returned with whitespace collapsed.
func CanonicalName(name string) string {
	if c, ok := canonicalNames[fold(name)]; ok {
		return c
	}
	return strings.Join(strings.Fields(name), " ")
}

// IsGoodFriday reports whether the name denotes Good Friday.
func IsGoodFriday(name string) bool {
	return fold(CanonicalName(name)) == fold(GoodFriday)
}

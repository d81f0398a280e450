// Package objects normalizes typed values (answers, rule inputs, customization
// args) submitted by clients into their canonical form.
package objects

import (
	"fmt"
	"sort"
)

var musicNotes = []string{"C4", "D4", "E4", "F4", "G4", "A4", "B4", "C5", "D5", "E5", "F5", "G5", "A5"}

var logicErrorCategories = []string{"parsing", "typing", "line", "layout", "variables", "logic", "odd", "mistake"}

var graphProperties = []string{"strongly_connected", "weakly_connected", "acyclic", "regular"}

var positionsOfTerms = []string{"lhs", "rhs", "both", "irrelevant"}

// AlgebraicIdentifiers lists the single latin letters and greek letter names
// accepted as variables in algebraic expressions.
var AlgebraicIdentifiers = func() []string {
	var out []string
	for c := 'a'; c <= 'z'; c++ {
		out = append(out, string(c))
	}
	for c := 'A'; c <= 'Z'; c++ {
		out = append(out, string(c))
	}
	out = append(out,
		"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta", "iota",
		"kappa", "lambda", "mu", "nu", "xi", "omicron", "pi", "rho", "sigma", "tau",
		"upsilon", "phi", "chi", "psi", "omega",
		"Gamma", "Delta", "Theta", "Lambda", "Xi", "Pi", "Sigma", "Phi", "Psi", "Omega")
	return out
}()

var coordTwoDim = listOf(normReal, listOpts{length: 2})

func translatable(valueKey string, value Normalizer) Normalizer {
	return dictOf(
		property{"contentId", normUnicode},
		property{valueKey, value},
	)
}

var registry = map[string]Normalizer{
	"Boolean":             normBool,
	"Real":                normReal,
	"Int":                 normInt,
	"NonnegativeInt":      intAtLeast(0),
	"PositiveInt":         intAtLeast(1),
	"UnicodeString":       normUnicode,
	"Html":                normHTML,
	"CodeString":          normCodeString,
	"NormalizedString":    normNormalizedString,
	"SanitizedUrl":        normSanitizedURL,
	"Filepath":            normUnicode,
	"SkillSelector":       normUnicode,
	"CoordTwoDim":         coordTwoDim,
	"ListOfCoordTwoDim":   listOf(coordTwoDim, listOpts{}),
	"ListOfUnicodeString": listOf(normUnicode, listOpts{}),
	"SetOfUnicodeString":  listOf(normUnicode, listOpts{unique: true}),
	"CodeEvaluation": dictOf(
		property{"code", normUnicode},
		property{"output", normUnicode},
		property{"evaluation", normUnicode},
		property{"error", normUnicode},
	),
	"MathExpressionContent": dictOf(
		property{"raw_latex", normUnicode},
		property{"svg_filename", normUnicode},
	),
	"MusicPhrase": listOf(dictOf(
		property{"readableNoteName", choices(musicNotes...)},
		property{"noteDuration", dictOf(
			property{"num", normReal},
			property{"den", normReal},
		)},
	), listOpts{}),
	"ListOfTabs": listOf(dictOf(
		property{"title", normUnicode},
		property{"content", normHTML},
	), listOpts{}),
	"CheckedProof":          normCheckedProof,
	"LogicQuestion":         normLogicQuestion,
	"LogicErrorCategory":    choices(logicErrorCategories...),
	"Graph":                 normGraph,
	"GraphProperty":         choices(graphProperties...),
	"Fraction":              fraction,
	"RatioExpression":       listOf(intAtLeast(1), listOpts{minLength: 2}),
	"NormalizedRectangle2D": normalizedRectangle,
	"ImageRegion": dictOf(
		property{"regionType", normUnicode},
		property{"area", normalizedRectangle},
	),
	"ClickOnImage": dictOf(
		property{"clickPosition", coordTwoDim},
		property{"clickedRegions", listOf(normUnicode, listOpts{})},
	),
	"PositionOfTerms":                   choices(positionsOfTerms...),
	"AlgebraicIdentifier":               choices(AlgebraicIdentifiers...),
	"SetOfAlgebraicIdentifier":          listOf(choices(AlgebraicIdentifiers...), listOpts{unique: true}),
	"TranslatableUnicodeString":         translatable("unicodeStr", normUnicode),
	"TranslatableHtml":                  translatable("html", normHTML),
	"TranslatableSetOfNormalizedString": translatable("normalizedStrSet", listOf(normNormalizedString, listOpts{unique: true})),
	"TranslatableSetOfUnicodeString":    translatable("unicodeStrSet", listOf(normUnicode, listOpts{unique: true})),
}

// Normalize converts v using the object type called name.
func Normalize(name string, v interface{}) (interface{}, error) {
	n, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown object type: %s", name)
	}
	return n(v)
}

// Names returns the registered object type names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

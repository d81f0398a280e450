// Package visualization describes the answer-statistics visualizations an
// exploration editor can attach to a state.
package visualization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openlearn/openlearn/backend/go-services/internal/objects"
)

// Calculation ids the statistics pipeline knows how to compute.
const (
	AnswerFrequencies                          = "AnswerFrequencies"
	Top5AnswerFrequencies                      = "Top5AnswerFrequencies"
	Top10AnswerFrequencies                     = "Top10AnswerFrequencies"
	FrequencyCommonlySubmittedElements         = "FrequencyCommonlySubmittedElements"
	TopAnswersByCategorization                 = "TopAnswersByCategorization"
	Top10AnswerFrequenciesWithoutAddressedInfo = "Top10AnswerFrequenciesWithoutAddressedInfo"
)

var calculations = map[string]bool{
	AnswerFrequencies:                          true,
	Top5AnswerFrequencies:                      true,
	Top10AnswerFrequencies:                     true,
	FrequencyCommonlySubmittedElements:         true,
	TopAnswersByCategorization:                 true,
	Top10AnswerFrequenciesWithoutAddressedInfo: true,
}

// OptionSpec names one option and the object type its value normalizes to.
type OptionSpec struct {
	Name       string
	ObjectType string
}

// Spec describes a visualization kind.
type Spec struct {
	ID          string
	Description string
	Options     []OptionSpec
}

var specs = map[string]Spec{
	"FrequencyTable": {
		ID:          "FrequencyTable",
		Description: "A two-column table of answers and their frequencies.",
		Options:     []OptionSpec{{Name: "column_headers", ObjectType: "ListOfUnicodeString"}},
	},
	"EnumeratedFrequencyTable": {
		ID:          "EnumeratedFrequencyTable",
		Description: "A table of answers, each with a list of its frequencies.",
		Options:     []OptionSpec{{Name: "column_headers", ObjectType: "ListOfUnicodeString"}},
	},
	"ClickHexbins": {
		ID:          "ClickHexbins",
		Description: "Clicks on an image aggregated into hexagonal bins.",
	},
	"SortedTiles": {
		ID:          "SortedTiles",
		Description: "Tiles of answers sorted by frequency.",
		Options: []OptionSpec{
			{Name: "header", ObjectType: "UnicodeString"},
			{Name: "use_percentages", ObjectType: "Boolean"},
		},
	},
}

// Get returns the definition registered for id.
func Get(id string) (Spec, error) {
	s, ok := specs[id]
	if !ok {
		return Spec{}, fmt.Errorf("%s is not a valid visualization id.", id)
	}
	return s, nil
}

// IDs returns every registered visualization id, sorted.
func IDs() []string {
	out := make([]string, 0, len(specs))
	for id := range specs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Visualization is one configured visualization instance.
type Visualization struct {
	spec                     Spec
	CalculationID            string
	Options                  map[string]interface{}
	AddressedInfoIsSupported interface{}
}

// New builds an unvalidated visualization of kind id.
func New(id, calculationID string, options map[string]interface{}, addressedInfoIsSupported interface{}) (*Visualization, error) {
	spec, err := Get(id)
	if err != nil {
		return nil, err
	}
	if options == nil {
		options = map[string]interface{}{}
	}
	return &Visualization{
		spec:                     spec,
		CalculationID:            calculationID,
		Options:                  options,
		AddressedInfoIsSupported: addressedInfoIsSupported,
	}, nil
}

func (v *Visualization) ID() string { return v.spec.ID }

// Validate checks the calculation id, option names and values, and the
// addressed-info flag.
func (v *Visualization) Validate() error {
	if !calculations[v.CalculationID] {
		return fmt.Errorf("'%s' is not a valid calculation id.", v.CalculationID)
	}

	got := make([]string, 0, len(v.Options))
	for name := range v.Options {
		got = append(got, name)
	}
	sort.Strings(got)
	want := make([]string, 0, len(v.spec.Options))
	for _, o := range v.spec.Options {
		want = append(want, o.Name)
	}
	sort.Strings(want)
	if strings.Join(got, "\x00") != strings.Join(want, "\x00") {
		return fmt.Errorf("For visualization %s, expected option names %s; received names %s",
			v.spec.ID, quoteList(want), quoteList(got))
	}

	for _, o := range v.spec.Options {
		norm, err := objects.Normalize(o.ObjectType, v.Options[o.Name])
		if err != nil {
			return err
		}
		v.Options[o.Name] = norm
	}

	if _, ok := v.AddressedInfoIsSupported.(bool); !ok {
		return fmt.Errorf("For visualization %s, expected a bool value for addressed_info_is_supported; received %v",
			v.spec.ID, v.AddressedInfoIsSupported)
	}
	return nil
}

// ToMap returns the dict stored on a state's answer-statistics config.
func (v *Visualization) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":                          v.spec.ID,
		"options":                     v.Options,
		"calculation_id":              v.CalculationID,
		"addressed_info_is_supported": v.AddressedInfoIsSupported,
	}
}

func quoteList(l []string) string {
	q := make([]string, len(l))
	for i, s := range l {
		q[i] = "'" + s + "'"
	}
	return "[" + strings.Join(q, ", ") + "]"
}

package objects

import "fmt"

var normalizedRectangle Normalizer = func(v interface{}) (interface{}, error) {
	rect := listOf(listOf(normReal, listOpts{length: 2}), listOpts{length: 2})
	out, err := rect(v)
	if err != nil {
		return nil, errorf("Cannot convert to Normalized Rectangle %s", describe(v))
	}
	clamp := func(f float64) float64 {
		if f < 0 {
			return 0
		}
		if f > 1 {
			return 1
		}
		return f
	}
	rows := out.([]interface{})
	res := make([]interface{}, 0, 2)
	for _, r := range rows {
		pt := r.([]interface{})
		res = append(res, []interface{}{clamp(pt[0].(float64)), clamp(pt[1].(float64))})
	}
	return res, nil
}

var fraction = dictOf(
	property{"isNegative", normBool},
	property{"wholeNumber", intAtLeast(0)},
	property{"numerator", intAtLeast(0)},
	property{"denominator", intAtLeast(1)},
)

var graphVertex = dictOf(
	property{"x", normReal},
	property{"y", normReal},
	property{"label", normUnicode},
)

var graphEdge = dictOf(
	property{"src", normInt},
	property{"dst", normInt},
	property{"weight", normInt},
)

var graphShape = dictOf(
	property{"vertices", listOf(graphVertex, listOpts{})},
	property{"edges", listOf(graphEdge, listOpts{})},
	property{"isLabeled", normBool},
	property{"isDirected", normBool},
	property{"isWeighted", normBool},
)

func normGraph(v interface{}) (interface{}, error) {
	out, err := graphShape(v)
	if err == nil {
		err = validateGraph(out.(map[string]interface{}))
	}
	if err != nil {
		return nil, errorf("Cannot convert to graph %s", describe(v))
	}
	return out, nil
}

func validateGraph(g map[string]interface{}) error {
	vertices := g["vertices"].([]interface{})
	edges := g["edges"].([]interface{})
	labeled := g["isLabeled"].(bool)
	directed := g["isDirected"].(bool)
	weighted := g["isWeighted"].(bool)

	if !labeled {
		for _, vx := range vertices {
			if vx.(map[string]interface{})["label"].(string) != "" {
				return fmt.Errorf("unlabeled graph has a vertex label")
			}
		}
	}
	seen := map[[2]int]bool{}
	for _, e := range edges {
		edge := e.(map[string]interface{})
		src, dst := edge["src"].(int), edge["dst"].(int)
		if src < 0 || dst < 0 || src >= len(vertices) || dst >= len(vertices) {
			return fmt.Errorf("edge endpoint out of range")
		}
		if src == dst {
			return fmt.Errorf("self loop")
		}
		if !weighted && edge["weight"].(int) != 1 {
			return fmt.Errorf("unweighted graph has a weighted edge")
		}
		key := [2]int{src, dst}
		if !directed && src > dst {
			key = [2]int{dst, src}
		}
		if seen[key] {
			return fmt.Errorf("duplicate edge")
		}
		seen[key] = true
	}
	return nil
}

var checkedProofBase = []property{
	{"assumptions_string", normUnicode},
	{"target_string", normUnicode},
	{"proof_string", normUnicode},
	{"correct", normBool},
}

var checkedProofIncorrect = dictOf(append(append([]property{}, checkedProofBase...),
	property{"error_category", normUnicode},
	property{"error_code", normUnicode},
	property{"error_message", normUnicode},
	property{"error_line_number", normInt},
)...)

func normCheckedProof(v interface{}) (interface{}, error) {
	fail := errorf("Cannot convert to checked proof %s", describe(v))
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fail
	}
	correct, ok := m["correct"].(bool)
	if !ok {
		return nil, fail
	}
	var out interface{}
	var err error
	if correct {
		out, err = dictOf(checkedProofBase...)(v)
	} else {
		out, err = checkedProofIncorrect(v)
	}
	if err != nil {
		return nil, fail
	}
	return out, nil
}

func normLogicExpression(v interface{}) (interface{}, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errorf("Expected dict, received %s", describe(v))
	}
	props := []property{
		{"top_kind_name", normUnicode},
		{"top_operator_name", normOperatorName},
		{"arguments", listOf(normLogicExpression, listOpts{})},
		{"dummies", listOf(normLogicExpression, listOpts{})},
	}
	if _, ok := m["type"]; ok {
		props = append(props, property{"type", normUnicode})
	}
	return dictOf(props...)(v)
}

func normOperatorName(v interface{}) (interface{}, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return normReal(v)
}

var normLogicQuestion = wrapAll(dictOf(
	property{"assumptions", listOf(normLogicExpression, listOpts{})},
	property{"results", listOf(normLogicExpression, listOpts{})},
	property{"default_proof_string", normUnicode},
), "Cannot convert to a logic question %s")

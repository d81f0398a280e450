// Package featureflag gates functionality behind named boolean flags whose
// values come from rules matched against the server and client context.
package featureflag

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/openlearn/openlearn/backend/go-services/internal/objects"
)

type ServerMode string

const (
	ServerModeDev  ServerMode = "dev"
	ServerModeTest ServerMode = "test"
	ServerModeProd ServerMode = "prod"
)

// Stage is how far a feature has progressed; it bounds the server modes a
// feature may be enabled in.
type Stage = ServerMode

const (
	DataTypeBool      = "bool"
	RuleSchemaVersion = 1

	FilterServerMode       = "server_mode"
	FilterPlatformType     = "platform_type"
	FilterBrowserType      = "browser_type"
	FilterAppVersion       = "app_version"
	FilterAppVersionFlavor = "app_version_flavor"
)

var (
	ServerModes   = []string{string(ServerModeDev), string(ServerModeTest), string(ServerModeProd)}
	PlatformTypes = []string{"Web", "Android", "Backend"}
	BrowserTypes  = []string{"Chrome", "Edge", "Safari", "Firefox", "Unknown"}
	// Ordered from least to most stable.
	AppVersionFlavors = []string{"test", "alpha", "beta", "release"}

	supportedOps = map[string][]string{
		FilterServerMode:       {"="},
		FilterPlatformType:     {"="},
		FilterBrowserType:      {"="},
		FilterAppVersion:       {"=", "<", "<=", ">", ">="},
		FilterAppVersionFlavor: {"=", "<", "<=", ">", ">="},
	}

	appVersionWithHash   = regexp.MustCompile(`^(\d+(?:\.\d+){2})(?:-[a-z0-9]+(?:-(.+))?)?$`)
	appVersionExpression = regexp.MustCompile(`^\d+(?:\.\d+)*$`)
)

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, a ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, a...)}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// EvaluationContext describes the caller a flag is evaluated for. Empty
// strings stand for values the client did not send.
type EvaluationContext struct {
	Platform   string     `json:"platform_type"`
	Browser    string     `json:"browser_type"`
	AppVersion string     `json:"app_version"`
	ServerMode ServerMode `json:"server_mode"`
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// ContextFromMap builds a context from the client-provided dict and the
// server-side dict.
func ContextFromMap(client, server map[string]interface{}) *EvaluationContext {
	return &EvaluationContext{
		Platform:   stringField(client, "platform_type"),
		Browser:    stringField(client, "browser_type"),
		AppVersion: stringField(client, "app_version"),
		ServerMode: ServerMode(stringField(server, "server_mode")),
	}
}

// IsValid reports whether flags can be evaluated against c at all.
func (c *EvaluationContext) IsValid() bool {
	return contains(PlatformTypes, c.Platform)
}

// AppVersionFlavor returns the flavor suffix of the app version, if any.
func (c *EvaluationContext) AppVersionFlavor() string {
	m := appVersionWithHash.FindStringSubmatch(c.AppVersion)
	if m == nil {
		return ""
	}
	return m[2]
}

func (c *EvaluationContext) Validate() error {
	if c.Platform != "" && !contains(PlatformTypes, c.Platform) {
		return validationErrorf("Invalid platform type '%s', must be one of %s.", c.Platform, objects.Repr(PlatformTypes))
	}
	if c.Browser != "" && !contains(BrowserTypes, c.Browser) {
		return validationErrorf("Invalid browser type '%s', must be one of %s.", c.Browser, objects.Repr(BrowserTypes))
	}
	if c.AppVersion != "" {
		m := appVersionWithHash.FindStringSubmatch(c.AppVersion)
		if m == nil {
			return validationErrorf("Invalid version '%s', expected to match regexp %s.", c.AppVersion, appVersionWithHash.String())
		}
		if m[2] != "" && !contains(AppVersionFlavors, m[2]) {
			return validationErrorf("Invalid version flavor '%s', must be one of %s if specified.", m[2], objects.Repr(AppVersionFlavors))
		}
	}
	if !contains(ServerModes, string(c.ServerMode)) {
		return validationErrorf("Invalid server mode '%s', must be one of %s.", c.ServerMode, objects.Repr(ServerModes))
	}
	return nil
}

// Filter matches when any of its [op, value] conditions matches.
type Filter struct {
	Type       string      `json:"type" yaml:"type" bson:"type"`
	Conditions [][2]string `json:"conditions" yaml:"conditions" bson:"conditions"`
}

func (f Filter) Validate() error {
	ops, ok := supportedOps[f.Type]
	if !ok {
		return validationErrorf("Unsupported filter type '%s'", f.Type)
	}
	for _, cond := range f.Conditions {
		op, value := cond[0], cond[1]
		if !contains(ops, op) {
			return validationErrorf("Unsupported comparison operator '%s' for %s filter, expected one of %s.", op, f.Type, objects.Repr(ops))
		}
		switch f.Type {
		case FilterServerMode:
			if !contains(ServerModes, value) {
				return validationErrorf("Invalid server mode '%s', must be one of %s.", value, objects.Repr(ServerModes))
			}
		case FilterPlatformType:
			if !contains(PlatformTypes, value) {
				return validationErrorf("Invalid platform type '%s', must be one of %s.", value, objects.Repr(PlatformTypes))
			}
		case FilterBrowserType:
			if !contains(BrowserTypes, value) {
				return validationErrorf("Invalid browser type '%s', must be one of %s.", value, objects.Repr(BrowserTypes))
			}
		case FilterAppVersion:
			if !appVersionExpression.MatchString(value) {
				return validationErrorf("Invalid version expression '%s', expected to match regexp %s.", value, appVersionExpression.String())
			}
		case FilterAppVersionFlavor:
			if !contains(AppVersionFlavors, value) {
				return validationErrorf("Invalid app version flavor '%s', must be one of %s.", value, objects.Repr(AppVersionFlavors))
			}
		}
	}
	return nil
}

func (f Filter) Evaluate(c *EvaluationContext) bool {
	for _, cond := range f.Conditions {
		if f.match(cond[0], cond[1], c) {
			return true
		}
	}
	return false
}

func (f Filter) match(op, value string, c *EvaluationContext) bool {
	switch f.Type {
	case FilterServerMode:
		return op == "=" && string(c.ServerMode) == value
	case FilterPlatformType:
		return op == "=" && c.Platform == value
	case FilterBrowserType:
		return op == "=" && c.Browser == value
	case FilterAppVersion:
		m := appVersionWithHash.FindStringSubmatch(c.AppVersion)
		if m == nil {
			return false
		}
		return compareResult(op, compareVersions(m[1], value))
	case FilterAppVersionFlavor:
		flavor := c.AppVersionFlavor()
		if flavor == "" {
			return false
		}
		return compareResult(op, flavorIndex(flavor)-flavorIndex(value))
	}
	return false
}

func flavorIndex(f string) int {
	for i, v := range AppVersionFlavors {
		if v == f {
			return i
		}
	}
	return -1
}

// compareVersions compares dotted versions numerically; missing trailing
// parts count as zero.
func compareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var x, y int
		if i < len(pa) {
			x, _ = strconv.Atoi(pa[i])
		}
		if i < len(pb) {
			y, _ = strconv.Atoi(pb[i])
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

func compareResult(op string, cmp int) bool {
	switch op {
	case "=":
		return cmp == 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// Rule yields ValueWhenMatched when all of its filters match.
type Rule struct {
	Filters          []Filter `json:"filters" yaml:"filters" bson:"filters"`
	ValueWhenMatched bool     `json:"value_when_matched" yaml:"value_when_matched" bson:"value_when_matched"`
}

func (r Rule) Evaluate(c *EvaluationContext) bool {
	for _, f := range r.Filters {
		if !f.Evaluate(c) {
			return false
		}
	}
	return true
}

func (r Rule) HasServerModeFilter() bool {
	for _, f := range r.Filters {
		if f.Type == FilterServerMode {
			return true
		}
	}
	return false
}

func (r Rule) Validate() error {
	for _, f := range r.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type Feature struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	DataType          string `json:"data_type"`
	Stage             Stage  `json:"feature_stage"`
	DefaultValue      bool   `json:"default_value"`
	Rules             []Rule `json:"rules"`
	RuleSchemaVersion int    `json:"rule_schema_version"`
	IsFeature         bool   `json:"is_feature"`
}

func NewFeature(name, description string, stage Stage) Feature {
	return Feature{
		Name:              name,
		Description:       description,
		DataType:          DataTypeBool,
		Stage:             stage,
		Rules:             []Rule{},
		RuleSchemaVersion: RuleSchemaVersion,
		IsFeature:         true,
	}
}

// Evaluate returns the value of the first matching rule, or the default.
func (f *Feature) Evaluate(c *EvaluationContext) bool {
	for _, r := range f.Rules {
		if r.Evaluate(c) {
			return r.ValueWhenMatched
		}
	}
	return f.DefaultValue
}

func (f *Feature) Validate() error {
	if f.DataType != DataTypeBool {
		return validationErrorf("Data type of feature flags must be bool, got '%s' instead.", f.DataType)
	}
	if !contains(ServerModes, string(f.Stage)) {
		return validationErrorf("Invalid feature stage, got '%s', expected one of %s.", f.Stage, objects.Repr(ServerModes))
	}
	if f.RuleSchemaVersion != RuleSchemaVersion {
		return validationErrorf("Current platform parameter rule schema version is v%d, received v%d.", RuleSchemaVersion, f.RuleSchemaVersion)
	}
	return ValidateRules(f.Stage, f.Rules)
}

// ValidateRules checks rules and rejects rules that would enable a feature in
// a server mode beyond its stage.
func ValidateRules(stage Stage, rules []Rule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if !r.ValueWhenMatched {
			continue
		}
		for _, f := range r.Filters {
			if f.Type != FilterServerMode {
				continue
			}
			for _, cond := range f.Conditions {
				mode := ServerMode(cond[1])
				switch stage {
				case ServerModeDev:
					if mode == ServerModeTest || mode == ServerModeProd {
						return validationErrorf("Feature in dev stage cannot be enabled in test or production environments.")
					}
				case ServerModeTest:
					if mode == ServerModeProd {
						return validationErrorf("Feature in test stage cannot be enabled in production environment.")
					}
				}
			}
		}
	}
	return nil
}

// ToMap returns the admin dict of the feature.
func (f *Feature) ToMap() map[string]interface{} {
	rules := make([]interface{}, 0, len(f.Rules))
	for _, r := range f.Rules {
		filters := make([]interface{}, 0, len(r.Filters))
		for _, fl := range r.Filters {
			conds := make([]interface{}, 0, len(fl.Conditions))
			for _, c := range fl.Conditions {
				conds = append(conds, []interface{}{c[0], c[1]})
			}
			filters = append(filters, map[string]interface{}{"type": fl.Type, "conditions": conds})
		}
		rules = append(rules, map[string]interface{}{"filters": filters, "value_when_matched": r.ValueWhenMatched})
	}
	return map[string]interface{}{
		"name":                f.Name,
		"description":         f.Description,
		"data_type":           f.DataType,
		"rules":               rules,
		"rule_schema_version": f.RuleSchemaVersion,
		"default_value":       f.DefaultValue,
		"is_feature":          f.IsFeature,
		"feature_stage":       string(f.Stage),
	}
}

// Package changes validates the command dictionaries that describe edits to
// versioned content (collections, explorations, skills, stories).
package changes

import (
	"fmt"
	"sort"
	"strings"
)

// CmdDeleteCommit is accepted by every Spec.
const CmdDeleteCommit = "delete_commit"

// ValidationError is returned when a change dict does not match its Spec.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, a ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, a...)}
}

// Command describes one allowed cmd and its attributes.
type Command struct {
	Name          string
	Required      []string
	Optional      []string
	AllowedValues map[string][]string
	Deprecated    bool
}

// Spec is the set of commands a change list may contain.
type Spec struct {
	commands map[string]Command
}

// NewSpec builds a Spec from cmds. delete_commit is always included.
func NewSpec(cmds ...Command) *Spec {
	s := &Spec{commands: make(map[string]Command, len(cmds)+1)}
	s.commands[CmdDeleteCommit] = Command{Name: CmdDeleteCommit}
	for _, c := range cmds {
		s.commands[c.Name] = c
	}
	return s
}

// Commands returns the allowed command names, sorted.
func (s *Spec) Commands() []string {
	out := make([]string, 0, len(s.commands))
	for name := range s.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks a single change dict and returns the typed Change.
func (s *Spec) Validate(m map[string]interface{}) (Change, error) {
	raw, ok := m["cmd"]
	if !ok {
		return Change{}, validationErrorf("Missing cmd key in change dict")
	}
	name := fmt.Sprint(raw)
	cmd, ok := s.commands[name]
	if !ok {
		return Change{}, validationErrorf("Command %s is not allowed", name)
	}
	if cmd.Deprecated {
		return Change{}, validationErrorf("Command %s is deprecated", name)
	}

	valid := make(map[string]bool, len(cmd.Required)+len(cmd.Optional))
	var missing []string
	for _, a := range cmd.Required {
		valid[a] = true
		if _, ok := m[a]; !ok {
			missing = append(missing, a)
		}
	}
	for _, a := range cmd.Optional {
		valid[a] = true
	}
	var extra []string
	for k := range m {
		if k != "cmd" && !valid[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	var msgs []string
	if len(missing) > 0 {
		msgs = append(msgs, "The following required attributes are missing: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		msgs = append(msgs, "The following extra attributes are present: "+strings.Join(extra, ", "))
	}
	if len(msgs) > 0 {
		return Change{}, &ValidationError{Msg: strings.Join(msgs, ", ")}
	}

	attrs := make([]string, 0, len(cmd.AllowedValues))
	for a := range cmd.AllowedValues {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	for _, a := range attrs {
		v := fmt.Sprint(m[a])
		if !contains(cmd.AllowedValues[a], v) {
			return Change{}, validationErrorf("Value for %s in cmd %s: %s is not allowed", a, name, v)
		}
	}

	c := Change{cmd: name, attrs: make(map[string]interface{}, len(m)-1)}
	for k, v := range m {
		if k != "cmd" {
			c.attrs[k] = v
		}
	}
	return c, nil
}

// ValidateList validates every dict in order and stops at the first error.
func (s *Spec) ValidateList(list []map[string]interface{}) ([]Change, error) {
	out := make([]Change, 0, len(list))
	for _, m := range list {
		c, err := s.Validate(m)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Package schema migrates map-based documents through a linear chain of
// versioned conversion steps.
package schema

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/openlearn/openlearn/backend/go-services/pkg/metrics"
)

// Doc is a decoded JSON or YAML document.
type Doc = map[string]interface{}

// Step converts a document from version v to v+1.
type Step func(Doc) (Doc, error)

var ErrNoStep = errors.New("no migration step registered")

// Chain holds the conversion steps for one entity kind. Steps[v] converts v to v+1.
type Chain struct {
	Entity  string
	Current int
	Steps   map[int]Step
}

// Migrate applies steps from version from until Current and returns the
// migrated document.
func (c *Chain) Migrate(doc Doc, from int) (Doc, error) {
	for v := from; v < c.Current; v++ {
		var err error
		if doc, err = c.apply(doc, v); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Versioned is a stored document tagged with its schema version.
type Versioned struct {
	SchemaVersion int
	Contents      Doc
}

// UpgradeOne moves versioned from version from to from+1 in place. It refuses
// to go past Current.
func (c *Chain) UpgradeOne(versioned *Versioned, from int) error {
	if versioned.SchemaVersion+1 > c.Current {
		return fmt.Errorf("%s is version %d but current %s schema version is %d",
			c.Entity, versioned.SchemaVersion, c.Entity, c.Current)
	}
	doc, err := c.apply(versioned.Contents, from)
	if err != nil {
		return err
	}
	versioned.SchemaVersion = from + 1
	versioned.Contents = doc
	return nil
}

// UpgradeToCurrent runs UpgradeOne until versioned reaches Current.
func (c *Chain) UpgradeToCurrent(versioned *Versioned) error {
	for versioned.SchemaVersion < c.Current {
		if err := c.UpgradeOne(versioned, versioned.SchemaVersion); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) apply(doc Doc, from int) (Doc, error) {
	step, ok := c.Steps[from]
	if !ok {
		return nil, fmt.Errorf("%s v%d to v%d: %w", c.Entity, from, from+1, ErrNoStep)
	}
	out, err := step(doc)
	if err != nil {
		return nil, fmt.Errorf("%s v%d to v%d: %w", c.Entity, from, from+1, err)
	}
	metrics.SchemaMigrations.WithLabelValues(c.Entity, strconv.Itoa(from)).Inc()
	return out, nil
}

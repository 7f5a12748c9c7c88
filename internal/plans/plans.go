// Package plans loads the subscription plan catalogue shared by the client and the backend.
package plans

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultCatalogue []byte

var ErrPlanNotFound = errors.New("plan not found")

type Plan struct {
	Name     string   `yaml:"name"`
	Amount   float64  `yaml:"amount"`
	Features []string `yaml:"features"`
}

type Catalogue struct {
	Currency string `yaml:"currency"`
	Plans    []Plan `yaml:"plans"`
}

// Load reads the catalogue from path, or the embedded default when path is empty.
func Load(path string) (*Catalogue, error) {
	raw := defaultCatalogue
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read plans file: %w", err)
		}
		raw = data
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse plans: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func Default() *Catalogue {
	c, err := Parse(defaultCatalogue)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalogue) validate() error {
	if c.Currency == "" {
		c.Currency = "ETB"
	}
	if len(c.Plans) == 0 {
		return errors.New("plans: catalogue is empty")
	}
	seen := make(map[string]bool, len(c.Plans))
	for _, p := range c.Plans {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if key == "" {
			return errors.New("plans: plan without a name")
		}
		if p.Amount <= 0 {
			return fmt.Errorf("plans: %s has non-positive amount %v", p.Name, p.Amount)
		}
		if seen[key] {
			return fmt.Errorf("plans: duplicate plan %s", p.Name)
		}
		seen[key] = true
	}
	return nil
}

// Lookup finds a plan by name, ignoring case and surrounding spaces.
func (c *Catalogue) Lookup(name string) (Plan, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, p := range c.Plans {
		if strings.ToLower(p.Name) == key {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, name)
}

func (c *Catalogue) Names() []string {
	names := make([]string, len(c.Plans))
	for i, p := range c.Plans {
		names[i] = p.Name
	}
	return names
}

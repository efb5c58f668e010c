// Package catalog describes the insurance products offered by the portal.
package catalog

import (
	"fmt"

	"github.com/faciam-dev/formportal/pkg/formschema"
)

// InsuranceType is one product a visitor can apply for.
type InsuranceType struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Catalog is the set of products together with the listing defaults.
type Catalog struct {
	Heading string              `yaml:"heading"`
	Tagline string              `yaml:"tagline"`
	Types   []InsuranceType     `yaml:"types"`
	Columns []formschema.Column `yaml:"columns"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Heading: "Smart Insurance Application Portal",
		Tagline: "Apply for insurance policies with our smart, dynamic application process",
		Types: []InsuranceType{
			{ID: "health", Name: "Health Insurance", Description: "Medical coverage for individuals and families"},
			{ID: "home", Name: "Home Insurance", Description: "Protection for your property and belongings"},
			{ID: "car", Name: "Car Insurance", Description: "Coverage for your vehicles against damage and accidents"},
			{ID: "life", Name: "Life Insurance", Description: "Financial security for your loved ones"},
		},
	}
}

// Lookup finds a product by id.
func (c *Catalog) Lookup(id string) (InsuranceType, bool) {
	for _, t := range c.Types {
		if t.ID == id {
			return t, true
		}
	}
	return InsuranceType{}, false
}

// Name returns the product name for id, or "Insurance" for unknown ids.
func (c *Catalog) Name(id string) string {
	if t, ok := c.Lookup(id); ok {
		return t.Name
	}
	return "Insurance"
}

func (c *Catalog) normalize() error {
	def := Default()
	if c.Heading == "" {
		c.Heading = def.Heading
	}
	if c.Tagline == "" {
		c.Tagline = def.Tagline
	}
	if len(c.Types) == 0 {
		c.Types = def.Types
	}
	seen := map[string]bool{}
	for _, t := range c.Types {
		if t.ID == "" {
			return fmt.Errorf("insurance type without id")
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate insurance type %q", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

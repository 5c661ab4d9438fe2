package models

import (
	"fmt"
	"strings"
)

// Category is a topic tag the provider groups articles by.
type Category string

const (
	CategoryEntertainment Category = "entertainment"
	CategoryWorld         Category = "world"
	CategoryBusiness      Category = "business"
	CategoryHealth        Category = "health"
	CategorySport         Category = "sport"
	CategoryScience       Category = "science"
	CategoryTechnology    Category = "technology"
)

// Categories returns every category in ingestion order.
func Categories() []Category {
	return []Category{
		CategoryEntertainment,
		CategoryWorld,
		CategoryBusiness,
		CategoryHealth,
		CategorySport,
		CategoryScience,
		CategoryTechnology,
	}
}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

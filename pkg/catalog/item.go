// Package catalog defines the PokeAPI resource projections used by the browser:
// list envelopes, identifiers and the Pokemon fields the filter engine reads.
package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Identifier addresses one catalog record by name or numeric id.
type Identifier string

// IDFromInt returns the identifier for a numeric id.
func IDFromInt(id int) Identifier {
	return Identifier(strconv.Itoa(id))
}

// NamedResource is one entry of a list envelope.
type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListEnvelope is the wrapper returned by list endpoints.
type ListEnvelope struct {
	// Count is the authoritative total for the endpoint
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []NamedResource `json:"results"`
}

// Stat enumerates the base stats carried by every Pokemon.
type Stat int

const (
	StatHP Stat = iota
	StatAttack
	StatDefense
	StatSpecialAttack
	StatSpecialDefense
	StatSpeed

	// NumStats is the number of known stats.
	NumStats
)

var statNames = [NumStats]string{
	StatHP:             "hp",
	StatAttack:         "attack",
	StatDefense:        "defense",
	StatSpecialAttack:  "special-attack",
	StatSpecialDefense: "special-defense",
	StatSpeed:          "speed",
}

// String returns the upstream stat name.
func (s Stat) String() string {
	if s < 0 || s >= NumStats {
		return fmt.Sprintf("stat(%d)", int(s))
	}
	return statNames[s]
}

// ParseStat resolves an upstream stat name.
func ParseStat(name string) (Stat, bool) {
	for i, n := range statNames {
		if n == name {
			return Stat(i), true
		}
	}
	return 0, false
}

// AllStats returns every stat in declaration order.
func AllStats() []Stat {
	stats := make([]Stat, NumStats)
	for i := range stats {
		stats[i] = Stat(i)
	}
	return stats
}

// StatValues holds one value per stat, each in 0-255.
type StatValues [NumStats]int

// Item is the projection of a Pokemon the browser filters and sorts on.
type Item struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Types     []string   `json:"types"`
	Abilities []string   `json:"abilities"`
	Stats     StatValues `json:"stats"`
}

// HasAnyType reports whether the item carries at least one of the given types.
func (i Item) HasAnyType(types []string) bool {
	return intersects(i.Types, types)
}

// HasAnyAbility reports whether the item carries at least one of the given abilities.
func (i Item) HasAnyAbility(abilities []string) bool {
	return intersects(i.Abilities, abilities)
}

func intersects(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// pokemonDocument mirrors the subset of /pokemon/{id} the browser needs.
type pokemonDocument struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Types []struct {
		Slot int           `json:"slot"`
		Type NamedResource `json:"type"`
	} `json:"types"`
	Abilities []struct {
		Ability  NamedResource `json:"ability"`
		IsHidden bool          `json:"is_hidden"`
	} `json:"abilities"`
	Stats []struct {
		BaseStat int           `json:"base_stat"`
		Stat     NamedResource `json:"stat"`
	} `json:"stats"`
}

// DecodeItem decodes a Pokemon detail document.
// Unknown stat names are ignored.
func DecodeItem(data []byte) (Item, error) {
	var doc pokemonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Item{}, fmt.Errorf("decode pokemon: %w", err)
	}
	if doc.ID <= 0 || doc.Name == "" {
		return Item{}, fmt.Errorf("decode pokemon: missing id or name")
	}

	item := Item{
		ID:        doc.ID,
		Name:      doc.Name,
		Types:     make([]string, 0, len(doc.Types)),
		Abilities: make([]string, 0, len(doc.Abilities)),
	}
	for _, t := range doc.Types {
		item.Types = append(item.Types, t.Type.Name)
	}
	for _, a := range doc.Abilities {
		item.Abilities = append(item.Abilities, a.Ability.Name)
	}
	for _, s := range doc.Stats {
		if stat, ok := ParseStat(s.Stat.Name); ok {
			item.Stats[stat] = s.BaseStat
		}
	}
	return item, nil
}

// DecodeItems decodes documents in order.
func DecodeItems(docs []json.RawMessage) ([]Item, error) {
	items := make([]Item, 0, len(docs))
	for i, doc := range docs {
		item, err := DecodeItem(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

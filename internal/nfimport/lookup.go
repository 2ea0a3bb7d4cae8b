package nfimport

import "strings"

// Lookup is the in-memory catalog snapshot a classification pass runs against.
// It is built fresh from storage for each pass and passed explicitly; the
// classifier never reaches into shared state.
type Lookup struct {
	Items             []*Item
	itemsByID         map[string]*Item
	itemsByNormalized map[string][]*Item
	aliasByNormalized map[string]*ItemAlias
	conversions       []*UnitConversion
}

// NewLookup indexes the given catalog snapshot.
func NewLookup(items []*Item, aliases []*ItemAlias, conversions []*UnitConversion) *Lookup {
	l := &Lookup{
		Items:             items,
		itemsByID:         make(map[string]*Item, len(items)),
		itemsByNormalized: make(map[string][]*Item, len(items)),
		aliasByNormalized: make(map[string]*ItemAlias, len(aliases)),
		conversions:       conversions,
	}
	for _, item := range items {
		l.itemsByID[item.ID] = item
		key := NormalizeName(item.Name)
		l.itemsByNormalized[key] = append(l.itemsByNormalized[key], item)
	}
	for _, alias := range aliases {
		l.aliasByNormalized[alias.AliasNormalized] = alias
	}
	return l
}

// ItemByID returns the active item with the given id, or nil.
func (l *Lookup) ItemByID(id string) *Item {
	return l.itemsByID[id]
}

// AutoMap resolves an ingredient name to an item. An exact normalized-name
// match wins only when unambiguous (exactly one item); two or more items with
// the same normalized name fall through to the alias table.
func (l *Lookup) AutoMap(ingredientName string) (*Item, string) {
	normalized := NormalizeName(ingredientName)

	if exact := l.itemsByNormalized[normalized]; len(exact) == 1 {
		return exact[0], MappingExact
	}

	if alias := l.aliasByNormalized[normalized]; alias != nil {
		if item := l.itemsByID[alias.ItemID]; item != nil {
			return item, MappingAlias
		}
	}

	return nil, ""
}

// FindConversion searches the measurement conversion table bidirectionally for
// a factor linking from->to. reverse reports that the factor was registered
// for the opposite direction and must be multiplied instead of divided.
func (l *Lookup) FindConversion(from, to string) (factor float64, reverse bool, ok bool) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" || from == to {
		return 0, false, false
	}
	for _, conv := range l.conversions {
		if !conv.Active || conv.Factor <= 0 {
			continue
		}
		convFrom := strings.ToUpper(strings.TrimSpace(conv.FromUnit))
		convTo := strings.ToUpper(strings.TrimSpace(conv.ToUnit))
		if convFrom == from && convTo == to {
			return conv.Factor, false, true
		}
		if convFrom == to && convTo == from {
			return conv.Factor, true, true
		}
	}
	return 0, false, false
}

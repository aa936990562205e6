package databox

// CompareOptions selects what IsSameAs compares.
type CompareOptions struct {
	// Headers compares header values
	Headers bool
	// Columns compares column values
	Columns bool
	// HeaderOrder requires headers in the same order
	HeaderOrder bool
	// ColumnOrder requires columns in the same order
	ColumnOrder bool
	// Keys compares by key; without it values are matched positionally, or
	// as a multiset when order is off too
	Keys bool
}

// AllFlags compares everything.
var AllFlags = CompareOptions{Headers: true, Columns: true, HeaderOrder: true, ColumnOrder: true, Keys: true}

// Equal reports whether d and other match under every flag.
func (d *Databox) Equal(other *Databox) bool {
	return d.IsSameAs(other, AllFlags)
}

// IsSameAs compares d with other under opts. A nil other is never the same.
func (d *Databox) IsSameAs(other *Databox, opts CompareOptions) bool {
	if d == nil || other == nil {
		return false
	}
	if opts.Headers && !sameStore(d.headers, other.headers, opts.HeaderOrder, opts.Keys, Value.Equal) {
		return false
	}
	if opts.Columns && !sameStore(d.columns, other.columns, opts.ColumnOrder, opts.Keys, (*Column).Equal) {
		return false
	}
	return true
}

func sameStore[V any](a, b *ordered[V], order, keys bool, eq func(V, V) bool) bool {
	if a.Len() != b.Len() {
		return false
	}
	switch {
	case keys && order:
		for i, k := range a.keys {
			if b.keys[i] != k || !eq(a.values[k], b.values[k]) {
				return false
			}
		}
	case keys:
		for _, k := range a.keys {
			bv, ok := b.values[k]
			if !ok || !eq(a.values[k], bv) {
				return false
			}
		}
	case order:
		for i, k := range a.keys {
			if !eq(a.values[k], b.values[b.keys[i]]) {
				return false
			}
		}
	default:
		// multiset match: each value of a claims one unused equal value of b
		used := make([]bool, b.Len())
		for _, ak := range a.keys {
			found := false
			for j, bk := range b.keys {
				if !used[j] && eq(a.values[ak], b.values[bk]) {
					used[j] = true
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

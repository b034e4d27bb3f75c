package predicate

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TupleDomain is a conjunction of per-column domains. A column absent from
// the map is unconstrained. The none domain matches no row at all.
type TupleDomain[C comparable] struct {
	domains map[C]Domain
	none    bool
}

func All[C comparable]() TupleDomain[C] {
	return TupleDomain[C]{}
}

func None[C comparable]() TupleDomain[C] {
	return TupleDomain[C]{none: true}
}

// WithColumnDomains drops unconstrained columns and collapses to none when
// any column domain is empty.
func WithColumnDomains[C comparable](domains map[C]Domain) TupleDomain[C] {
	ret := TupleDomain[C]{domains: make(map[C]Domain, len(domains))}
	for c, d := range domains {
		if d.IsEmpty() {
			return None[C]()
		}
		if d.IsAll() {
			continue
		}
		ret.domains[c] = d
	}
	return ret
}

func (t TupleDomain[C]) IsAll() bool {
	return !t.none && len(t.domains) == 0
}

func (t TupleDomain[C]) IsNone() bool {
	return t.none
}

// Domains returns a copy of the constrained columns. It is nil for none.
func (t TupleDomain[C]) Domains() map[C]Domain {
	if t.none {
		return nil
	}
	ret := make(map[C]Domain, len(t.domains))
	for c, d := range t.domains {
		ret[c] = d
	}
	return ret
}

func (t TupleDomain[C]) Domain(c C) (Domain, bool) {
	d, ok := t.domains[c]
	return d, ok
}

func (t TupleDomain[C]) Intersect(o TupleDomain[C]) TupleDomain[C] {
	if t.none || o.none {
		return None[C]()
	}
	merged := make(map[C]Domain, len(t.domains)+len(o.domains))
	for c, d := range t.domains {
		merged[c] = d
	}
	for c, d := range o.domains {
		if prev, ok := merged[c]; ok {
			d = prev.Intersect(d)
		}
		merged[c] = d
	}
	return WithColumnDomains(merged)
}

// Transform rekeys the column domains. An error from f aborts the transform.
func Transform[C, D comparable](t TupleDomain[C], f func(C) (D, error)) (TupleDomain[D], error) {
	if t.none {
		return None[D](), nil
	}
	ret := make(map[D]Domain, len(t.domains))
	for c, d := range t.domains {
		nc, err := f(c)
		if err != nil {
			return TupleDomain[D]{}, err
		}
		if _, ok := ret[nc]; ok {
			return TupleDomain[D]{}, fmt.Errorf("transform maps two columns onto %v", nc)
		}
		ret[nc] = d
	}
	return WithColumnDomains(ret), nil
}

type columnDomain[C comparable] struct {
	Column C      `json:"column"`
	Domain Domain `json:"domain"`
}

func (t TupleDomain[C]) MarshalJSON() ([]byte, error) {
	if t.none {
		return json.Marshal(map[string]any{"none": true})
	}
	cols := make([]columnDomain[C], 0, len(t.domains))
	for c, d := range t.domains {
		cols = append(cols, columnDomain[C]{Column: c, Domain: d})
	}
	sort.Slice(cols, func(i, j int) bool {
		return fmt.Sprint(cols[i].Column) < fmt.Sprint(cols[j].Column)
	})
	return json.Marshal(map[string]any{"columns": cols})
}

package predicate

// Bound is one end of a value range.
type Bound struct {
	Value     any  `json:"value"`
	Inclusive bool `json:"inclusive"`
}

// Domain is the set of values a single column may take: an optional range
// plus, separately, whether NULL is allowed. A nil bound is unbounded.
type Domain struct {
	Low         *Bound `json:"low,omitempty"`
	High        *Bound `json:"high,omitempty"`
	NullAllowed bool   `json:"null_allowed"`
	OnlyNull    bool   `json:"only_null,omitempty"`
}

func AllValues() Domain {
	return Domain{NullAllowed: true}
}

func SingleValue(v any) Domain {
	return Domain{
		Low:  &Bound{Value: v, Inclusive: true},
		High: &Bound{Value: v, Inclusive: true},
	}
}

func Between(low, high any) Domain {
	return Domain{
		Low:  &Bound{Value: low, Inclusive: true},
		High: &Bound{Value: high, Inclusive: true},
	}
}

func GreaterThan(v any, inclusive bool) Domain {
	return Domain{Low: &Bound{Value: v, Inclusive: inclusive}}
}

func LessThan(v any, inclusive bool) Domain {
	return Domain{High: &Bound{Value: v, Inclusive: inclusive}}
}

func OnlyNull() Domain {
	return Domain{NullAllowed: true, OnlyNull: true}
}

func (d Domain) IsAll() bool {
	return d.Low == nil && d.High == nil && d.NullAllowed && !d.OnlyNull
}

// IsEmpty reports whether no value, not even NULL, satisfies d.
func (d Domain) IsEmpty() bool {
	if d.OnlyNull {
		return !d.NullAllowed
	}
	if d.rangeEmpty() {
		return !d.NullAllowed
	}
	return false
}

func (d Domain) rangeEmpty() bool {
	if d.Low == nil || d.High == nil {
		return false
	}
	c, err := Compare(d.Low.Value, d.High.Value)
	if err != nil {
		return false
	}
	return c > 0 || (c == 0 && !(d.Low.Inclusive && d.High.Inclusive))
}

// Overlaps reports whether a shard holding values in [min, max] (and NULLs
// when hasNulls) may contain a row satisfying d. Nil min or max is unknown
// and never prunes. Incomparable values never prune either.
func (d Domain) Overlaps(min, max any, hasNulls bool) bool {
	if hasNulls && d.NullAllowed {
		return true
	}
	if d.OnlyNull {
		return false
	}
	if d.rangeEmpty() {
		return false
	}
	if min == nil || max == nil {
		return true
	}
	if d.High != nil {
		c, err := Compare(min, d.High.Value)
		if err == nil && (c > 0 || (c == 0 && !d.High.Inclusive)) {
			return false
		}
	}
	if d.Low != nil {
		c, err := Compare(max, d.Low.Value)
		if err == nil && (c < 0 || (c == 0 && !d.Low.Inclusive)) {
			return false
		}
	}
	return true
}

// Intersect narrows d by o.
func (d Domain) Intersect(o Domain) Domain {
	ret := Domain{
		NullAllowed: d.NullAllowed && o.NullAllowed,
		OnlyNull:    d.OnlyNull || o.OnlyNull,
		Low:         tighterLow(d.Low, o.Low),
		High:        tighterHigh(d.High, o.High),
	}
	if ret.OnlyNull {
		ret.Low, ret.High = nil, nil
	}
	return ret
}

func tighterLow(a, b *Bound) *Bound {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	c, err := Compare(a.Value, b.Value)
	if err != nil {
		return a
	}
	switch {
	case c > 0:
		return a
	case c < 0:
		return b
	}
	return &Bound{Value: a.Value, Inclusive: a.Inclusive && b.Inclusive}
}

func tighterHigh(a, b *Bound) *Bound {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	c, err := Compare(a.Value, b.Value)
	if err != nil {
		return a
	}
	switch {
	case c < 0:
		return a
	case c > 0:
		return b
	}
	return &Bound{Value: a.Value, Inclusive: a.Inclusive && b.Inclusive}
}

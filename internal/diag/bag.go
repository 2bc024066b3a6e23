package diag

// Bag is an ordered list of diagnostics. Insertion order is preserved.
type Bag struct {
	items []Diagnostic
}

func NewBag(capacity int) *Bag {
	if capacity < 0 {
		capacity = 0
	}
	return &Bag{items: make([]Diagnostic, 0, capacity)}
}

// Add appends d.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// Extend appends every diagnostic of ds in order.
func (b *Bag) Extend(ds []Diagnostic) {
	b.items = append(b.items, ds...)
}

// Merge appends the diagnostics of another Bag after the current ones.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.items = append(b.items, other.items...)
}

// HasErrors возвращает true, если есть хотя бы одна ошибка
func (b *Bag) HasErrors() bool {
	return HasErrors(b.items)
}

// HasWarnings возвращает true, если есть хотя бы одно предупреждение
func (b *Bag) HasWarnings() bool {
	for i := range b.items {
		if b.items[i].Severity == SevWarning {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns a copy of the diagnostics so callers cannot alias the bag.
func (b *Bag) Items() []Diagnostic {
	if len(b.items) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// HasErrors reports whether ds contains an error-severity diagnostic.
func HasErrors(ds []Diagnostic) bool {
	for i := range ds {
		if ds[i].Severity == SevError {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics in ds with severity sev.
func Count(ds []Diagnostic, sev Severity) int {
	n := 0
	for i := range ds {
		if ds[i].Severity == sev {
			n++
		}
	}
	return n
}

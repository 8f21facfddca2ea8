package comparison

// Report collects results in the order they were produced. Tasks without a
// result are not part of it.
type Report struct {
	results []*Result
	index   map[string]int
}

// NewReport creates an empty report
func NewReport() *Report {
	return &Report{index: make(map[string]int)}
}

// Add records r. A nil result is ignored. A second result for the same
// qualified name replaces the first one in place.
func (r *Report) Add(res *Result) {
	if res == nil {
		return
	}
	name := res.Task.QualifiedName
	if i, ok := r.index[name]; ok {
		r.results[i] = res
		return
	}
	r.index[name] = len(r.results)
	r.results = append(r.results, res)
}

// Get returns the result for a qualified name.
func (r *Report) Get(name string) (*Result, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.results[i], true
}

// Results returns every result in insertion order.
func (r *Report) Results() []*Result {
	return r.results
}

// Len returns the number of results.
func (r *Report) Len() int {
	return len(r.results)
}

// Differing returns the qualified names of differing fields in order.
func (r *Report) Differing() []string {
	var names []string
	for _, res := range r.results {
		if res.IsDifferent {
			names = append(names, res.Task.QualifiedName)
		}
	}
	return names
}

// AllSame reports whether no result is flagged as different.
func (r *Report) AllSame() bool {
	for _, res := range r.results {
		if res.IsDifferent {
			return false
		}
	}
	return true
}

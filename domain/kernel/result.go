package kernel

// Value is a named scalar output of a kernel.
type Value struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// TestResult carries one or more named p-values plus diagnostic statistics.
// Order is significant and stable for a given kernel and parameter set.
type TestResult struct {
	PValues    []Value `json:"p_values"`
	Statistics []Value `json:"statistics,omitempty"`
}

// AddPValue appends a named p-value.
func (r *TestResult) AddPValue(name string, p float64) {
	r.PValues = append(r.PValues, Value{Name: name, Value: p})
}

// AddStatistic appends a named diagnostic statistic.
func (r *TestResult) AddStatistic(name string, v float64) {
	r.Statistics = append(r.Statistics, Value{Name: name, Value: v})
}

// PValue looks up a p-value by name.
func (r TestResult) PValue(name string) (float64, bool) {
	return lookup(r.PValues, name)
}

// Statistic looks up a statistic by name.
func (r TestResult) Statistic(name string) (float64, bool) {
	return lookup(r.Statistics, name)
}

func lookup(vals []Value, name string) (float64, bool) {
	for _, v := range vals {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

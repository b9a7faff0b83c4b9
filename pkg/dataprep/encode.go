package dataprep

// LabelEncoder maps category strings to integer codes in first-seen order.
type LabelEncoder struct {
	Mapping map[string]int
}

// LabelEncode encodes categories as integers.
func LabelEncode(values []string) ([]int, *LabelEncoder) {
	enc := &LabelEncoder{Mapping: map[string]int{}}
	out := make([]int, len(values))
	for i, v := range values {
		if _, ok := enc.Mapping[v]; !ok {
			enc.Mapping[v] = len(enc.Mapping)
		}
		out[i] = enc.Mapping[v]
	}
	return out, enc
}

// Encode returns the code for v; ok is false for categories not seen at fit time.
func (e *LabelEncoder) Encode(v string) (code int, ok bool) {
	code, ok = e.Mapping[v]
	return code, ok
}

// Len is the number of known categories.
func (e *LabelEncoder) Len() int { return len(e.Mapping) }

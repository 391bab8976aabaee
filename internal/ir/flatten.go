package ir

// Flatten expands nested arrays into one ordered, duplicate-free sequence.
// Nulls are dropped. A scalar flattens to a one-element sequence and null to
// an empty one.
func Flatten(v IRValue) IRArray {
	return FlattenWith(v, nil)
}

// FlattenWith is Flatten with a projection applied to every reference.
// The projected values are flattened recursively. A nil project keeps
// references as they are.
func FlattenWith(v IRValue, project func(IRRef) IRValue) IRArray {
	out := IRArray{}
	seen := make(map[string]struct{})
	var walk func(IRValue)
	walk = func(v IRValue) {
		switch val := v.(type) {
		case nil, IRNull:
			return
		case IRArray:
			for _, elem := range val {
				walk(elem)
			}
			return
		case IRRef:
			if project != nil {
				walk(project(val))
				return
			}
		}
		key := CanonicalKey(v)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	walk(v)
	return out
}

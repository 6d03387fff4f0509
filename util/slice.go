package util

func Contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

// AppendUnique appends item unless it is already present.
func AppendUnique(list []string, item string) []string {
	if Contains(list, item) {
		return list
	}
	return append(list, item)
}

// Distinct returns the unique items of list preserving first-seen order.
func Distinct(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

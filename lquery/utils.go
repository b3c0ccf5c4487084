package lquery

import (
	"cmp"
	"slices"
)

// Each calls fn for every item in order until fn returns false.
func Each[T any](items []T, fn func(i int, v T) bool) {
	for i, v := range items {
		if !fn(i, v) {
			return
		}
	}
}

// EachEntry is Each over a map, in key order.
func EachEntry[K cmp.Ordered, V any](m map[K]V, fn func(k K, v V) bool) {
	for _, k := range keys(m) {
		if !fn(k, m[k]) {
			return
		}
	}
}

func Map[T, U any](items []T, fn func(i int, v T) U) []U {
	res := make([]U, 0, len(items))
	for i, v := range items {
		res = append(res, fn(i, v))
	}
	return res
}

// MapEntries maps the entries of m in key order.
func MapEntries[K cmp.Ordered, V, U any](m map[K]V, fn func(k K, v V) U) []U {
	res := make([]U, 0, len(m))
	for _, k := range keys(m) {
		res = append(res, fn(k, m[k]))
	}
	return res
}

// Grep keeps the items fn accepts, or with invert the ones it rejects.
func Grep[T any](items []T, fn func(i int, v T) bool, invert bool) []T {
	var res []T
	for i, v := range items {
		if fn(i, v) != invert {
			res = append(res, v)
		}
	}
	return res
}

// GrepEntries is Grep over a map. The result is a new map.
func GrepEntries[K comparable, V any](m map[K]V, fn func(k K, v V) bool, invert bool) map[K]V {
	res := make(map[K]V)
	for k, v := range m {
		if fn(k, v) != invert {
			res[k] = v
		}
	}
	return res
}

// Extend merges target and objs into a new map, later keys winning. With
// deep, nested maps and slices are copied instead of shared. Neither target
// nor objs are modified.
func Extend(deep bool, target map[string]any, objs ...map[string]any) map[string]any {
	res := make(map[string]any)
	for _, o := range append([]map[string]any{target}, objs...) {
		for k, v := range o {
			if deep {
				v = deepCopy(v)
			}
			res[k] = v
		}
	}
	return res
}

func deepCopy(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(vv))
		for k, x := range vv {
			m[k] = deepCopy(x)
		}
		return m
	case []any:
		s := make([]any, len(vv))
		for i, x := range vv {
			s[i] = deepCopy(x)
		}
		return s
	}
	return v
}

func keys[K cmp.Ordered, V any](m map[K]V) []K {
	ks := make([]K, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	slices.Sort(ks)
	return ks
}

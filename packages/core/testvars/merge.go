package testvars

// Merge deep-merges src into dst and returns dst.
// When both sides hold an object under the same key the objects are merged
// recursively; otherwise the value from src replaces the one in dst.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = Merge(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			dst[k] = Merge(nil, srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}

// MergeAll merges sources left to right into a new mapping; the last source
// wins on conflicts. The sources are not modified.
func MergeAll(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		Merge(result, src)
	}
	return result
}

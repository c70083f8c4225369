// Package assets decodes container records into typed, immutable
// asset values and memoizes them behind a byte-budgeted cache.
//
// Each kind has a pure decoder taking an AssetRecord; decoders share
// no state and may run concurrently across distinct records. A decoder
// either returns a structurally valid asset or a MalformedAssetError,
// never a partial value. The cache guarantees at most one decode per
// record id under concurrent access and evicts unreferenced assets
// least-recently-used when the budget is exceeded; the container
// re-supplies bytes, so eviction only ever costs recomputation.
package assets

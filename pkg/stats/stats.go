// Package stats provides the counters collected while auditing a dependency
// tree and the merge operation used to combine them.
//
// Stats values form a commutative monoid under Merge with Zero as identity,
// so partial results may be combined in any grouping or order.
package stats

import "fmt"

// Stats holds module-system counters. Every field is a count of files except
// Packages, which is filled in once after traversal.
type Stats struct {
	Packages         uint32 `json:"packages" toon:"packages"`
	Files            uint32 `json:"files" toon:"files"`
	ESM              uint32 `json:"esm" toon:"esm"`
	DynamicImport    uint32 `json:"dynamic_import" toon:"dynamic_import"`
	CJS              uint32 `json:"cjs" toon:"cjs"`
	NonStaticExports uint32 `json:"non_static_exports" toon:"non_static_exports"`
	NonStaticDeps    uint32 `json:"non_static_deps" toon:"non_static_deps"`
	Errors           uint32 `json:"errors" toon:"errors"`
}

// Zero returns the identity element.
func Zero() Stats {
	return Stats{}
}

// FileStats returns the contribution of one successfully read and parsed file
// before any classification flags are set.
func FileStats() Stats {
	return Stats{Files: 1}
}

// ErrorStats returns the contribution of a file that could not be read or parsed.
func ErrorStats() Stats {
	return Stats{Files: 1, Errors: 1}
}

// Merge returns the field-wise sum of s and o.
func (s Stats) Merge(o Stats) Stats {
	return Stats{
		Packages:         s.Packages + o.Packages,
		Files:            s.Files + o.Files,
		ESM:              s.ESM + o.ESM,
		DynamicImport:    s.DynamicImport + o.DynamicImport,
		CJS:              s.CJS + o.CJS,
		NonStaticExports: s.NonStaticExports + o.NonStaticExports,
		NonStaticDeps:    s.NonStaticDeps + o.NonStaticDeps,
		Errors:           s.Errors + o.Errors,
	}
}

// Merge is the free-function form of Stats.Merge, usable as a reducer.
func Merge(a, b Stats) Stats {
	return a.Merge(b)
}

// Sum folds all values with Merge, starting from Zero.
func Sum(all ...Stats) Stats {
	total := Zero()
	for _, s := range all {
		total = total.Merge(s)
	}
	return total
}

// IsZero reports whether every counter is zero.
func (s Stats) IsZero() bool {
	return s == Stats{}
}

// String renders the counters on one line, mainly for logs and test failures.
func (s Stats) String() string {
	return fmt.Sprintf("packages=%d files=%d esm=%d dynamic_import=%d cjs=%d non_static_exports=%d non_static_deps=%d errors=%d",
		s.Packages, s.Files, s.ESM, s.DynamicImport, s.CJS, s.NonStaticExports, s.NonStaticDeps, s.Errors)
}

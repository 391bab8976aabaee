// Package ir provides the value representation shared by every graphq package.
//
// Property values read from graph entities, search values held by predicates and
// rows decoded from the store are all IRValue instances. The set of value types
// is closed (sealed interface) so comparison, conversion and index encoding can
// switch exhaustively.
//
// This package imports nothing internal. All other internal packages import ir;
// ir stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Nulls are explicit (IRNull), never a nil interface in stored data
//   - Related entities are referenced by ID (IRRef), never embedded
//   - Incomparable pairs are reported, not coerced (see Compare)
//   - Canonical JSON is the only encoding used for identity and dedup keys
package ir

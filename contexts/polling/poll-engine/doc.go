// Package pollengine implements the poll voting consistency engine inside the
// polling context.
//
// The module owns the poll aggregate (options, per-option voter sets, derived
// totals, lock/expiry state) and guarantees that concurrent vote, unvote, and
// option mutations never corrupt it: decisions are pure functions over an
// immutable snapshot, and persistence happens through a single conditional
// write keyed on the aggregate version. Business rules live in domain and
// application layers; infrastructure stays behind ports and adapters.
package pollengine

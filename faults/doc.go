// Package faults provides the structured error taxonomy shared by the
// sidequest agents. Every failure that crosses a package boundary carries a
// code and a category so callers can decide between surfacing, retrying, and
// degrading without string matching.
//
// # Categories
//
//   - Transient: retry may succeed (timeouts, upstream hiccups)
//   - Permanent: retry will not help (malformed records, invalid input)
//   - Resource: exhaustion (rate limits)
//   - Internal: bugs and unexpected states
//
// # Pipeline codes
//
// The XP award pipeline maps its failure classes onto codes:
//
//   - MALFORMED_RECORD: a store record failed strict extraction; the record
//     is skipped, the batch continues
//   - CLASSIFIER: the classifier could not produce a usable decision; the
//     matcher degrades to its heuristic
//   - STORE_WRITE: the completion patch failed; fatal for the request
//   - LEDGER_WRITE: the ledger append failed; logged and swallowed
//
// # Usage
//
// Create and inspect:
//
//	err := faults.New(faults.CodeStoreWrite, "patch task", faults.WithTaskID(id))
//	if faults.HasCode(err, faults.CodeStoreWrite) {
//	    // surface to the caller
//	}
//
// Wrap a cause while keeping the chain intact:
//
//	return faults.Wrap(err, "query task database")
package faults

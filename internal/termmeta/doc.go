// Package termmeta maps taxonomy terms to the carrier records that hold their metadata.
//
// A Registry records which taxonomies participate and which carrier entity type each is
// paired with. A Resolver turns a (taxonomy, term key) pair into the id of the term's
// carrier record:
//
//  1. unregistered taxonomy: no carrier, nothing else is consulted
//  2. cache hit: return the cached id
//  3. look the term up through the host, absent terms resolve to nothing
//  4. query the durable relationship store
//  5. on a miss, hand the term to the CarrierCreator, then query the store once more
//
// Failures never surface as errors from Resolve; callers treat "no carrier yet" as a
// normal state. Only successful resolutions are cached, under both the term id and the
// term name, so a term created or linked later is picked up on the next call.
//
// Creation for a given (taxonomy, term id) is collapsed with singleflight so concurrent
// resolves of the same carrier-less term produce at most one carrier record.
package termmeta

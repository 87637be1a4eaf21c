// Package customers composes denormalized customer table rows.
//
// A Composer fetches the base records from a CustomerSource, scores and
// classifies each one synchronously, then resolves two ancillary facts per
// row (latest contact-or-sale and open balance) with bounded concurrency.
// Output order always equals input order.
//
// Only a base fetch failure is fatal to a batch. An ancillary lookup that
// fails or times out degrades that row's affected cells and the row is still
// emitted.
package customers

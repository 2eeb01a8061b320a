// Package aggregator keeps the latest message received for every sensor.
//
// The Aggregator subscribes to the registry's topic patterns and, for each
// delivered message, decodes the payload, resolves which sensor it belongs
// to, and overwrites that sensor's entry. Arrival order decides: the last
// message to arrive wins regardless of the timestamp it carries.
//
// Each sensor starts Unset and becomes Known on its first accepted message.
// Entries are never removed. Malformed payloads and unknown topics are
// logged, counted, and dropped without touching the table.
//
// Readers take a Snapshot, which is a copy; nothing outside the package
// ever holds a reference to the live table. Listeners registered with
// OnUpdate are called after every accepted message, outside the lock.
//
// Thread Safety:
//   - HandleMessage may run on several delivery goroutines at once and
//     concurrently with Snapshot and Get.
package aggregator

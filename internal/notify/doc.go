// Package notify maintains the notifications mirror and unread count.
//
// Preferred transport is the Arbor event stream: init seeds the mirror,
// new_item inserts at the head, item_updated replaces in place, and
// count_update corrects the unread badge. When the stream cannot be
// established or dies — including an explicit error event — the center
// tears the subscriber down first and then degrades to polling the
// unread-count endpoint every 30 seconds, doubling the interval while the
// endpoint keeps failing.
//
// Mark-read operations are optimistic with rollback and reentry-guarded per
// notification; mark-all fans out through the batch path.
package notify

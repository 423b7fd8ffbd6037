// Package ports declares the contracts between the order lifecycle core and its adapters:
// the order store with conditional writes, the audit history, the unit of work, the
// change bus, and the notification providers.
package ports

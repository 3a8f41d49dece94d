// Package paycore is the payment reconciliation core of the InHouse Card
// storefront. It receives asynchronous payment-status notifications from
// a payment gateway, authenticates them, and applies exactly one
// consistent state transition to the referenced order — no matter how
// often, in what order, or in which of the gateway's payload shapes the
// notification is delivered.
//
// # Architecture
//
// The notification flow follows this pattern:
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│    Payment      │───►│    PayCore      │───►│   Order Store   │
//	│    Gateway      │◄───│  (Reconciler)   │───►│   Audit Log     │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// Inbound notifications are normalized into one canonical shape,
// verified against the shared webhook secret, and reconciled: the engine
// fetches the authoritative payment details from the gateway, maps the
// gateway status onto the order lifecycle, and writes the transition in
// a single atomic update. Every notification — duplicate, malformed,
// unauthenticated, or successful — leaves exactly one audit entry.
//
// The module also ships a deterministic scan-to-pay codec (package
// pixcode) that builds checksummed, length-prefixed tag/value payloads
// for QR rendering, with no network or storage dependency.
//
// # Packages
//
//   - reconcile: notification normalizer, signature verifier, status
//     mapper, and the reconciliation engine
//   - gateway: payment source contract and registry, with Mercado Pago
//     and Stripe implementations
//   - pixcode: the scan-to-pay payload codec
//   - handler: HTTP surface (webhook, paycode, audit monitor, health)
//   - infra: configuration, structured logging, OpenSearch audit log,
//     sqlite order store, HTTP middleware
package paycore

// Package indexer is a query-admission gateway for a decentralized
// data-indexing query engine.
//
// The gateway receives subgraph queries over HTTP, decides whether each
// request must be paid for or is exempt via a trusted-source whitelist,
// computes a deterministic content identifier over the raw query bytes,
// and dispatches execution to the downstream query processor over NATS
// request/reply.
//
// # Layout
//
//   - gateway: admission types, whitelist, processor contract
//   - gateway/http: the HTTP admission gateway (decision sequence,
//     dispatch, outcome mapping)
//   - cid: content identifier function (Keccak-256)
//   - processor: NATS-backed query processor client
//   - status: filtered GraphQL status proxy
//   - natsclient: NATS connection management
//   - metric: Prometheus metrics
//   - config: service configuration
//   - server: HTTP assembly and lifecycle
//   - cmd/indexer-gateway: the binary
package indexer

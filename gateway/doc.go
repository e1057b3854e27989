// Package gateway defines the admission-control model for the indexer
// query gateway.
//
// The gateway sits in front of the query engine and decides, per request,
// whether a subgraph query must be paid for or is exempt via a trusted
// source whitelist, then dispatches it to the paid or free execution path
// of the downstream query processor.
//
// # Admission policy
//
// A request carries up to two headers:
//
//   - X-Graph-Payment-ID: presence selects the paid path
//   - X-Graph-State-Channel-ID: required on the free path
//
// Payment is mandatory for any source address not in the whitelist.
// Whitelist membership only waives the requirement to supply a payment ID;
// a whitelisted caller that supplies one is still charged.
//
// # Collaborators
//
// The actual query execution lives behind the QueryProcessor interface.
// The gateway computes a content identifier over the raw query bytes and
// hands it to the processor together with the payment or state-channel
// context; the processor correlates the identifier with its payment and
// receipt bookkeeping.
//
// The HTTP surface lives in the http subpackage.
package gateway

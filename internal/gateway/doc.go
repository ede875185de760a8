// Package gateway is the single dispatch surface for reads and single-item
// mutations against an environment's cluster.
//
// Kinds are served from a strategy table (see kinds.go); each strategy owns
// its list projection, its dynamic GroupVersionResource and its delete call,
// so a kind is added by adding a table entry. Every operation resolves the
// environment, checks out one client handle from the pool, runs its upstream
// calls under the configured request timeout and releases the handle before
// returning. Errors are classified onto the util taxonomy.
package gateway

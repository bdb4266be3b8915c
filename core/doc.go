// Package core holds the Tripline SDK contracts shared by the client, the
// webhook verifier and the storage adapters: configuration, domain types, the
// error taxonomy and the logging and metrics seams. Adapters depend on core;
// core never depends on an adapter.
package core

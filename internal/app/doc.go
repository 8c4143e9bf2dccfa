// Package app bootstraps and runs the gateway process.
//
// Bootstrap wires the OAuth lifecycle manager, capability discovery, the
// dispatcher, and the configured transport into one Application, performs
// the initial discovery cycle (a hard failure when no capability survives),
// and then runs until signalled. A config-file watcher forces re-discovery
// when the configuration changes on disk.
package app

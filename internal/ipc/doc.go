// Package ipc carries control traffic between the wdantipark CLI and the
// daemon over JSON-RPC on a Unix domain socket. The daemon hosts Server;
// the CLI uses Client and the typed request/response pairs in types.go.
package ipc

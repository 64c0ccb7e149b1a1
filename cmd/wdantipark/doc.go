// Command wdantipark is the operator CLI for wdantiparkd. It launches and
// stops the daemon, renders its status, and manages configuration files.
package main

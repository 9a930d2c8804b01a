// Package tor routes crawler traffic through a SOCKS5 proxy, usually Tor.
//
// Client wraps a SOCKS5 dialer from golang.org/x/net/proxy and builds the
// http.Client the HTTP fetcher and the download probe use. EmbeddedTor
// starts a private Tor daemon through tornago when no proxy is running.
package tor

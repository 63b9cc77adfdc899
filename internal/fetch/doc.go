// Package fetch retrieves page bodies over HTTP.
//
// A Fetcher performs one GET per URL with a read timeout and a fixed
// User-Agent. Automatic redirects are disabled: a 301 or 302 response is
// followed exactly once, and a second redirect fails the request. Bodies are
// decoded to UTF-8 from the charset the server declares and truncated at a
// configurable size.
//
// Requests can be routed through a SOCKS5 proxy and throttled with a shared
// token bucket.
package fetch

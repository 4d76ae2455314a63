// Package xray is a small client for the Artifactory and Xray REST calls the
// load harness exercises: repository and security policy creation, watches,
// artifact scan status and violation queries.
//
// Every call returns a [Response] carrying the status code, the measured
// round trip and the body. A status outside the operation's accepted set is
// reported as a [*StatusError] alongside the response so callers can still
// record the elapsed time.
package xray

// Package poll runs the fetch, diff, report, notify and persist cycle and
// keeps the last-cycle status for the status API.
package poll

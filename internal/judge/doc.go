// Package judge decides whether a mirror looks healthy relative to the
// authoritative mirror for its repo. The verdict is deliberately trinary:
// healthy, unhealthy, or indeterminate, so "no information" can never be
// misread as either of the other two.
package judge

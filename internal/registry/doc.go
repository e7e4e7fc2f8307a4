// Package registry loads the mirror topology: it keeps a checkout of the
// tools repo current and parses the per-domain mirror definition files in it
// into groups of mirrors ready for monitoring.
package registry

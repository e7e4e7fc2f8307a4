// Package release extracts sync times from apt Release files. A mirror's
// Release file carries a Date line stamped at publish time, which is the only
// freshness signal the mirrors themselves vend.
package release

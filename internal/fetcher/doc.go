// Package fetcher retrieves mirror Release files over HTTP and classifies
// every outcome into exactly one category. Only a 200 response with a fully
// read body counts as success; everything else becomes a failure transition
// for the mirror that was checked.
package fetcher

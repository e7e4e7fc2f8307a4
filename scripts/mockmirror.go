// Mockmirror is a fake package repo mirror used for manual end-to-end runs.
// It serves a Release file under /dists/<repo>/Release with a sync time a
// configurable duration in the past, so staleness scenarios can be staged
// without waiting for a real mirror to fall behind.
//
// Usage:
//
//	go run mockmirror.go -port 8081 -age 3h
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	age := flag.Duration("age", 0, "how far in the past the served sync time lies")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/dists/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Release") {
			http.NotFound(w, r)
			return
		}
		syncTime := time.Now().UTC().Add(-*age)
		log.Printf("%s %s (sync time %s)", r.Method, r.URL.Path, syncTime.Format(time.RFC3339))

		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "Origin: Mockmirror\n")
		fmt.Fprintf(w, "Codename: stable\n")
		fmt.Fprintf(w, "Date: %s UTC\n", syncTime.Format("Mon, 2 Jan 2006 15:04:05"))
		fmt.Fprintf(w, "Architectures: all aarch64 arm i686 x86_64\n")
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock mirror listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

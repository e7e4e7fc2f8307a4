package main

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/mirror-minder/internal/metrics"
	"github.com/angeloszaimis/mirror-minder/pkg/logger"
)

func TestMain(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Main Suite")
}

var _ = Describe("newRootCmd", func() {
	It("should require exactly one workdir argument", func() {
		cmd := newRootCmd()
		Expect(cmd.Args(cmd, []string{})).To(HaveOccurred())
		Expect(cmd.Args(cmd, []string{"/tmp/workdir", "extra"})).To(HaveOccurred())
		Expect(cmd.Args(cmd, []string{"/tmp/workdir"})).NotTo(HaveOccurred())
	})

	It("should expose the log-only and verbose flags", func() {
		cmd := newRootCmd()
		Expect(cmd.Flags().Lookup("log-only")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("verbose")).NotTo(BeNil())
		Expect(cmd.Flags().ShorthandLookup("v")).NotTo(BeNil())
	})
})

var _ = Describe("startStatusServer", func() {
	It("should serve the metrics snapshot on /status", func() {
		m := metrics.New()
		m.RecordCheck("mirror.example.org", true)
		log := logger.New("error", false, "dev")

		shutdown, err := startStatusServer(":18675", m, log)
		Expect(err).NotTo(HaveOccurred())
		defer shutdown()
		time.Sleep(100 * time.Millisecond)

		resp, err := http.Get("http://localhost:18675/status")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		var snap metrics.Snapshot
		Expect(json.Unmarshal(body, &snap)).To(Succeed())
		Expect(snap.TotalChecks).To(Equal(int64(1)))
	})

	It("should reject a malformed listen address", func() {
		_, err := startStatusServer("not:a:valid:addr", metrics.New(), logger.New("error", false, "dev"))
		Expect(err).To(HaveOccurred())
	})
})

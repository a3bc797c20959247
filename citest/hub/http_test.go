package hub_test

import (
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HTTP Surface", func() {
	It("reports status and counts on /health", func() {
		resp, err := http.Get(testServer.BaseURL + "/health")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("application/json"))

		var health struct {
			Status  string `json:"status"`
			Clients int    `json:"clients"`
			Sources int    `json:"sources"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&health)).To(Succeed())
		Expect(health.Status).To(Equal("ok"))
		Expect(health.Clients).To(BeNumerically(">=", 0))
		Expect(health.Sources).To(BeNumerically(">=", 0))
	})

	It("exposes hub activity on /stats", func() {
		resp, err := http.Get(testServer.BaseURL + "/stats")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var stats struct {
			Clients       int `json:"clients"`
			Subscribers   int `json:"subscribers"`
			Sources       int `json:"sources"`
			ActiveContext int `json:"activeContext"`
			UptimeSeconds int `json:"uptimeSeconds"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&stats)).To(Succeed())
		Expect(stats.Clients).To(BeNumerically(">=", 0))
		Expect(stats.Subscribers).To(BeNumerically("<=", stats.Clients))
		Expect(stats.UptimeSeconds).To(BeNumerically(">=", 0))
	})

	It("returns 404 for unknown paths", func() {
		resp, err := http.Get(testServer.BaseURL + "/unknown/endpoint")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("answers CORS preflight for browser clients", func() {
		req, err := http.NewRequest(http.MethodOptions, testServer.BaseURL+"/health", nil)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", "GET")

		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(BeNumerically("<", 300))
		Expect(resp.Header.Get("Access-Control-Allow-Origin")).NotTo(BeEmpty())
	})

	It("rejects plain HTTP requests on the websocket endpoint", func() {
		resp, err := http.Get(testServer.BaseURL + "/ws")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})
})

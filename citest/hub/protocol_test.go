package hub_test

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ctxhub-ai/ctxhub/citest/testutil"
)

var _ = Describe("Connection Admission", func() {
	var conn *websocket.Conn
	var welcome *testutil.Welcome

	BeforeEach(func() {
		var err error
		conn, welcome, err = testutil.DialWS(testServer.WSURL)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if conn != nil {
			conn.Close()
		}
	})

	It("greets every connection with a welcome frame", func() {
		Expect(welcome.ID).To(Equal("welcome"))
		Expect(welcome.Success).To(BeTrue())
		Expect(welcome.Data.ClientID).To(HavePrefix("cli_"))
	})

	It("hands out distinct client ids", func() {
		conn2, welcome2, err := testutil.DialWS(testServer.WSURL)
		Expect(err).NotTo(HaveOccurred())
		defer conn2.Close()

		Expect(welcome2.Data.ClientID).NotTo(Equal(welcome.Data.ClientID))
	})

	It("welcomes concurrent arrivals exactly once each", func() {
		const n = 8
		ids := make(chan string, n)

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()

				c, w, err := testutil.DialWS(testServer.WSURL)
				Expect(err).NotTo(HaveOccurred())
				defer c.Close()

				Expect(w.ID).To(Equal("welcome"))
				ids <- w.Data.ClientID
			}()
		}
		wg.Wait()
		close(ids)

		seen := map[string]bool{}
		for id := range ids {
			Expect(id).To(HavePrefix("cli_"))
			Expect(seen[id]).To(BeFalse(), "client id %s issued twice", id)
			seen[id] = true
		}
		Expect(seen).To(HaveLen(n))
	})
})

var _ = Describe("Frame Handling", func() {
	var conn *websocket.Conn

	BeforeEach(func() {
		var err error
		conn, _, err = testutil.DialWS(testServer.WSURL)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if conn != nil {
			conn.Close()
		}
	})

	Describe("Malformed Frames", func() {
		It("answers undecodable frames without dropping the connection", func() {
			Expect(testutil.SendRaw(conn, []byte("{not json"))).To(Succeed())

			resp, err := testutil.ReadResponse(conn, 2*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.ID).To(Equal("unknown"))
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Error).To(Equal("Invalid message format"))

			// The connection survives and keeps serving requests
			Expect(testutil.SendRequest(conn, "get_sources", "after-garbage", nil)).To(Succeed())
			next, err := testutil.ReadResponse(conn, 2*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(next.ID).To(Equal("after-garbage"))
			Expect(next.Success).To(BeTrue())
		})

		It("rejects frames whose fields have the wrong shape", func() {
			Expect(testutil.SendRaw(conn, []byte(`{"type": 123, "id": "r1"}`))).To(Succeed())

			resp, err := testutil.ReadResponse(conn, 2*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.ID).To(Equal("unknown"))
			Expect(resp.Error).To(Equal("Invalid message format"))
		})

		It("rejects frames with no type even when the id parses", func() {
			Expect(testutil.SendRaw(conn, []byte(`{"id": "r2"}`))).To(Succeed())

			resp, err := testutil.ReadResponse(conn, 2*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.ID).To(Equal("unknown"))
			Expect(resp.Success).To(BeFalse())
		})
	})

	Describe("Unknown Message Types", func() {
		It("echoes the request id on the error", func() {
			Expect(testutil.SendRequest(conn, "bogus_op", "req-9", nil)).To(Succeed())

			resp, err := testutil.ReadResponse(conn, 2*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.ID).To(Equal("req-9"))
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Error).To(Equal("Unknown message type: bogus_op"))
		})

		It("echoes unusual id strings verbatim", func() {
			id := "αβγ/../req!!"
			Expect(testutil.SendRequest(conn, "get_sources", id, nil)).To(Succeed())

			resp, err := testutil.ReadResponse(conn, 2*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.ID).To(Equal(id))
			Expect(resp.Success).To(BeTrue())
		})
	})

	Describe("Response Ordering", func() {
		It("answers a burst of requests in arrival order", func() {
			const n = 10
			for i := 0; i < n; i++ {
				Expect(testutil.SendRequest(conn, "get_sources", fmt.Sprintf("burst-%d", i), nil)).To(Succeed())
			}

			for i := 0; i < n; i++ {
				resp, err := testutil.ReadResponse(conn, 2*time.Second)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.ID).To(Equal(fmt.Sprintf("burst-%d", i)))
			}
		})

		It("interleaves mixed request types in order", func() {
			Expect(testutil.SendRequest(conn, "get_sources", "m-0", nil)).To(Succeed())
			Expect(testutil.SendRequest(conn, "nonsense", "m-1", nil)).To(Succeed())
			Expect(testutil.SendRequest(conn, "get_active_context", "m-2", nil)).To(Succeed())

			ids := []string{}
			for i := 0; i < 3; i++ {
				resp, err := testutil.ReadResponse(conn, 2*time.Second)
				Expect(err).NotTo(HaveOccurred())
				ids = append(ids, resp.ID)
			}
			Expect(ids).To(Equal([]string{"m-0", "m-1", "m-2"}))
		})
	})
})

var _ = Describe("Empty Hub", func() {
	It("lists sources as an empty array, not null", func() {
		// A fresh server so no other spec's sources leak in
		fresh, err := testutil.StartTestServer()
		Expect(err).NotTo(HaveOccurred())
		defer fresh.Stop()

		conn, _, err := testutil.DialWS(fresh.WSURL)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		Expect(testutil.SendRequest(conn, "get_sources", "empty-1", nil)).To(Succeed())
		data, err := testutil.ReadFrame(conn, 2*time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"data":[]`))

		Expect(testutil.SendRequest(conn, "get_active_context", "empty-2", nil)).To(Succeed())
		data, err = testutil.ReadFrame(conn, 2*time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"data":[]`))
	})
})

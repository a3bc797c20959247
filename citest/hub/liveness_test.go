package hub_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ctxhub-ai/ctxhub/citest/testutil"
)

var _ = Describe("Connection Liveness", func() {
	var hub *testutil.TestServer

	BeforeEach(func() {
		var err error
		hub, err = testutil.StartTestServer(testutil.WithPingInterval(time.Second))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		hub.Stop()
	})

	clientCount := func() int {
		h, err := hub.Health()
		if err != nil {
			return -1
		}
		return h.Clients
	}

	It("terminates clients that stop answering probes", func() {
		// A raw connection that never reads: the server's pings pile up
		// unanswered because pongs only flow while the client is reading.
		conn, _, err := testutil.DialWS(hub.WSURL)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		Expect(clientCount()).To(Equal(1))

		Eventually(clientCount, 6*time.Second, 200*time.Millisecond).Should(Equal(0),
			"deaf client was never evicted")
	})

	It("keeps responsive clients connected", func() {
		c, err := hub.Dial()
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()

		Consistently(clientCount, 3*time.Second, 250*time.Millisecond).Should(Equal(1))
	})

	It("frees the slot for new connections after eviction", func() {
		deaf, _, err := testutil.DialWS(hub.WSURL)
		Expect(err).NotTo(HaveOccurred())
		defer deaf.Close()

		Eventually(clientCount, 6*time.Second, 200*time.Millisecond).Should(Equal(0))

		// The hub keeps admitting clients afterwards
		c, err := hub.Dial()
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()
		Expect(clientCount()).To(Equal(1))
	})
})

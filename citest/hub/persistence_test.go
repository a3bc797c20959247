package hub_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ctxhub-ai/ctxhub/citest/testutil"
	"github.com/ctxhub-ai/ctxhub/pkg/client"
)

var _ = Describe("Persistence Across Restarts", func() {
	var storageDir *testutil.TempDir

	BeforeEach(func() {
		var err error
		storageDir, err = testutil.NewTempDir()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		storageDir.Cleanup()
	})

	It("reloads sources and the active context after a restart", func() {
		first, err := testutil.StartTestServer(testutil.WithStorageDir(storageDir.Path))
		Expect(err).NotTo(HaveOccurred())

		c, err := first.Dial()
		Expect(err).NotTo(HaveOccurred())

		a, err := c.AddSource(ctx, client.NewSource{Name: "survivor", Type: "snippet", Content: "kept"})
		Expect(err).NotTo(HaveOccurred())
		b, err := c.AddSource(ctx, client.NewSource{Name: "also kept", Type: "snippet", Content: "yes"})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.SetActiveContext(ctx, []string{b.ID, a.ID})
		Expect(err).NotTo(HaveOccurred())

		c.Close()
		Expect(first.Stop()).To(Succeed())

		// Same storage, fresh process state
		second, err := testutil.StartTestServer(testutil.WithStorageDir(storageDir.Path))
		Expect(err).NotTo(HaveOccurred())
		defer second.Stop()

		c2, err := second.Dial()
		Expect(err).NotTo(HaveOccurred())
		defer c2.Close()

		sources, err := c2.GetSources(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sources).To(HaveLen(2))

		byID := map[string]string{}
		for _, s := range sources {
			byID[s.ID] = s.Content
		}
		Expect(byID).To(HaveKeyWithValue(a.ID, "kept"))
		Expect(byID).To(HaveKeyWithValue(b.ID, "yes"))

		active, err := c2.GetActiveContext(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(HaveLen(2))
		Expect(active[0].ID).To(Equal(b.ID))
		Expect(active[1].ID).To(Equal(a.ID))
	})
})

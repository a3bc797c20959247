package hub_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ctxhub-ai/ctxhub/citest/testutil"
	"github.com/ctxhub-ai/ctxhub/pkg/client"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

var _ = Describe("Active Context", func() {
	var c *client.Client
	var created []string

	BeforeEach(func() {
		var err error
		c, err = testServer.Dial()
		Expect(err).NotTo(HaveOccurred())
		created = nil

		_, err = c.SetActiveContext(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		c.SetActiveContext(ctx, nil)
		for _, id := range created {
			c.DeleteSource(ctx, id)
		}
		c.Close()
	})

	add := func(name string) *types.Source {
		src := mustAdd(c, name)
		created = append(created, src.ID)
		return src
	}

	It("replaces the active set and preserves order", func() {
		a := add("first")
		b := add("second")
		d := add("third")

		active, err := c.SetActiveContext(ctx, []string{d.ID, a.ID, b.ID})
		Expect(err).NotTo(HaveOccurred())

		names := []string{}
		for _, s := range active {
			names = append(names, s.Name)
		}
		Expect(names).To(Equal([]string{"third", "first", "second"}))

		// get_active_context returns the same membership and order
		fetched, err := c.GetActiveContext(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(fetched).To(HaveLen(3))
		Expect(fetched[0].ID).To(Equal(d.ID))
		Expect(fetched[1].ID).To(Equal(a.ID))
		Expect(fetched[2].ID).To(Equal(b.ID))
	})

	It("collapses duplicate ids to their first position", func() {
		a := add("alpha")
		b := add("beta")

		active, err := c.SetActiveContext(ctx, []string{a.ID, b.ID, a.ID})
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(HaveLen(2))
		Expect(active[0].ID).To(Equal(a.ID))
		Expect(active[1].ID).To(Equal(b.ID))
	})

	It("rejects sets that name unknown sources", func() {
		a := add("known")

		_, err := c.SetActiveContext(ctx, []string{a.ID, "src_missing"})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("Source not found: src_missing"))

		// The previous active set is untouched
		active, getErr := c.GetActiveContext(ctx)
		Expect(getErr).NotTo(HaveOccurred())
		Expect(active).To(BeEmpty())
	})

	It("clears with an empty list", func() {
		a := add("soloist")

		_, err := c.SetActiveContext(ctx, []string{a.ID})
		Expect(err).NotTo(HaveOccurred())

		cleared, err := c.SetActiveContext(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(cleared).To(BeEmpty())
	})

	It("drops deleted sources from the active set", func() {
		a := add("stays")
		b := mustAdd(c, "goes")

		_, err := c.SetActiveContext(ctx, []string{a.ID, b.ID})
		Expect(err).NotTo(HaveOccurred())

		Expect(c.DeleteSource(ctx, b.ID)).To(Succeed())

		active, err := c.GetActiveContext(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(HaveLen(1))
		Expect(active[0].ID).To(Equal(a.ID))
	})
})

var _ = Describe("Source Content", func() {
	var c *client.Client
	var created []string

	BeforeEach(func() {
		var err error
		c, err = testServer.Dial()
		Expect(err).NotTo(HaveOccurred())
		created = nil
	})

	AfterEach(func() {
		for _, id := range created {
			c.DeleteSource(ctx, id)
		}
		c.Close()
	})

	add := func(name string) *types.Source {
		src := mustAdd(c, name)
		created = append(created, src.ID)
		return src
	}

	It("updates inline content on the source record", func() {
		src := add("inline")
		Expect(src.Content).To(Equal("content of inline"))

		Expect(c.UpdateSourceContent(ctx, src.ID, "rewritten")).To(Succeed())
		Expect(fetchSource(c, src.ID).Content).To(Equal("rewritten"))

		Expect(c.ClearSourceContent(ctx, src.ID)).To(Succeed())
		Expect(fetchSource(c, src.ID).Content).To(BeEmpty())
	})

	It("leaves inline content off the content response", func() {
		src := add("carried on the record")

		content, err := c.GetSourceContent(ctx, src.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(content.SourceID).To(Equal(src.ID))
		Expect(content.Content).To(BeEmpty(), "inline content travels on the source record")
	})

	It("reads file sources from the server workspace", func() {
		rel := "notes-" + testutil.RandomString(6) + ".md"
		full := filepath.Join(testServer.WorkDir, rel)
		Expect(os.WriteFile(full, []byte("# Notes\n"), 0644)).To(Succeed())
		defer os.Remove(full)

		src, err := c.AddSource(ctx, client.NewSource{
			Name: "workspace notes",
			Type: "file",
			Path: rel,
		})
		Expect(err).NotTo(HaveOccurred())
		created = append(created, src.ID)

		content, err := c.GetSourceContent(ctx, src.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(content.Content).To(Equal("# Notes\n"))
		Expect(content.Path).To(Equal(rel))
	})

	It("writes file source content through to disk", func() {
		rel := "scratch-" + testutil.RandomString(6) + ".txt"
		full := filepath.Join(testServer.WorkDir, rel)
		Expect(os.WriteFile(full, []byte("old"), 0644)).To(Succeed())
		defer os.Remove(full)

		src, err := c.AddSource(ctx, client.NewSource{
			Name: "scratch file",
			Type: "file",
			Path: rel,
		})
		Expect(err).NotTo(HaveOccurred())
		created = append(created, src.ID)

		Expect(c.UpdateSourceContent(ctx, src.ID, "new text")).To(Succeed())

		onDisk, err := os.ReadFile(full)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(onDisk)).To(Equal("new text"))

		// Reading back through the hub returns exactly what was written
		content, err := c.GetSourceContent(ctx, src.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(content.Content).To(Equal("new text"))
	})

	It("fails for unknown source ids", func() {
		_, err := c.GetSourceContent(ctx, "src_missing")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("Source not found: src_missing"))
	})
})

// fetchSource reads a source record back via get_sources.
func fetchSource(c *client.Client, id string) *types.Source {
	GinkgoHelper()
	sources, err := c.GetSources(ctx)
	Expect(err).NotTo(HaveOccurred())
	for i := range sources {
		if sources[i].ID == id {
			return &sources[i]
		}
	}
	Fail("source " + id + " not found")
	return nil
}

package hub_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ctxhub-ai/ctxhub/citest/testutil"
	"github.com/ctxhub-ai/ctxhub/pkg/client"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

var _ = Describe("Source Lifecycle", func() {
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
		if c != nil {
			c.Close()
		}
	})

	track := func(src *types.Source) *types.Source {
		created = append(created, src.ID)
		return src
	}

	Describe("add_source", func() {
		It("registers a snippet and returns the stored record", func() {
			src, err := c.AddSource(ctx, client.NewSource{
				Name:    "api notes " + testutil.RandomString(6),
				Type:    "snippet",
				Content: "tokens expire after 15 minutes",
			})
			Expect(err).NotTo(HaveOccurred())
			track(src)

			Expect(src.ID).To(HavePrefix("src_"))
			Expect(src.Type).To(Equal(types.SourceTypeSnippet))
			Expect(src.Content).To(Equal("tokens expire after 15 minutes"))
			Expect(src.Time.Created).NotTo(BeZero())
			Expect(src.Time.Updated).To(Equal(src.Time.Created))
		})

		It("rejects unknown source types", func() {
			_, err := c.AddSource(ctx, client.NewSource{Name: "bad", Type: "bogus"})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("invalid source type: bogus"))
		})

		It("mints a fresh id for every source", func() {
			a := track(mustAdd(c, "dup name"))
			b := track(mustAdd(c, "dup name"))
			Expect(a.ID).NotTo(Equal(b.ID))
		})
	})

	Describe("get_sources", func() {
		It("lists registered sources", func() {
			src := track(mustAdd(c, "listed "+testutil.RandomString(6)))

			sources, err := c.GetSources(ctx)
			Expect(err).NotTo(HaveOccurred())

			ids := make([]string, 0, len(sources))
			for _, s := range sources {
				ids = append(ids, s.ID)
			}
			Expect(ids).To(ContainElement(src.ID))
		})

		It("shows sources added by one connection to every other", func() {
			src := track(mustAdd(c, "shared "+testutil.RandomString(6)))

			other, err := testServer.Dial()
			Expect(err).NotTo(HaveOccurred())
			defer other.Close()

			sources, err := other.GetSources(ctx)
			Expect(err).NotTo(HaveOccurred())

			hits := 0
			for _, s := range sources {
				if s.ID == src.ID {
					hits++
				}
			}
			Expect(hits).To(Equal(1), "source must appear exactly once")
		})
	})

	Describe("update_source", func() {
		It("applies a partial update and bumps the timestamp", func() {
			src := track(mustAdd(c, "before"))

			name := "after"
			desc := "renamed in a test"
			updated, err := c.UpdateSource(ctx, src.ID, types.SourcePatch{
				Name:        &name,
				Description: &desc,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(updated.Name).To(Equal("after"))
			Expect(updated.Description).To(Equal("renamed in a test"))
			Expect(updated.Content).To(Equal(src.Content), "untouched fields survive")
			Expect(updated.Time.Updated.After(src.Time.Updated) ||
				updated.Time.Updated.Equal(src.Time.Updated)).To(BeTrue())
		})

		It("fails for unknown ids", func() {
			name := "x"
			_, err := c.UpdateSource(ctx, "src_missing", types.SourcePatch{Name: &name})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("Source not found: src_missing"))
		})
	})

	Describe("delete_source", func() {
		It("removes the source from the hub", func() {
			src := mustAdd(c, "doomed")

			Expect(c.DeleteSource(ctx, src.ID)).To(Succeed())

			sources, err := c.GetSources(ctx)
			Expect(err).NotTo(HaveOccurred())
			for _, s := range sources {
				Expect(s.ID).NotTo(Equal(src.ID))
			}

			err = c.DeleteSource(ctx, src.ID)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("Source not found: " + src.ID))
		})
	})
})

// mustAdd registers a snippet source or aborts the test.
func mustAdd(c *client.Client, name string) *types.Source {
	GinkgoHelper()
	src, err := c.AddSource(ctx, client.NewSource{
		Name:    name,
		Type:    "snippet",
		Content: "content of " + name,
	})
	Expect(err).NotTo(HaveOccurred())
	return src
}

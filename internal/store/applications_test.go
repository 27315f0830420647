package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xADE/ade-launchd/internal/apps"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func candidates(ids ...string) []apps.Application {
	list := make([]apps.Application, 0, len(ids))
	for _, id := range ids {
		list = append(list, apps.New("name-"+id, id, "/path/"+id))
	}
	return list
}

func ids(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.AppID)
	}
	return out
}

var _ = Describe("Applications", func() {
	var (
		db    *DB
		clock time.Time
	)

	BeforeEach(func() {
		var err error
		db, err = OpenMemory()
		Expect(err).NotTo(HaveOccurred())
		clock = time.Unix(1_700_000_000, 0)
		db.Now = func() time.Time { return clock }
	})

	AfterEach(func() {
		db.Close()
	})

	Describe("Reconcile", func() {
		It("inserts everything into an empty store", func() {
			added, err := db.Reconcile(candidates("c", "a", "b"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(added)).To(Equal([]string{"c", "a", "b"}))

			for _, r := range added {
				Expect(r.UsageCount).To(BeZero())
				Expect(r.LastUsed).To(BeNil())
				Expect(r.AddedDate).To(Equal(clock.Unix()))
			}

			all, err := db.GetAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(all)).To(Equal([]string{"a", "b", "c"}))
			Expect(all[0].Name).To(Equal("name-a"))
			Expect(all[0].Path).To(Equal("/path/a"))
		})

		It("is idempotent", func() {
			_, err := db.Reconcile(candidates("a", "b", "c"))
			Expect(err).NotTo(HaveOccurred())
			before, err := db.GetAll()
			Expect(err).NotTo(HaveOccurred())

			added, err := db.Reconcile(candidates("a", "b", "c"))
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(BeEmpty())

			after, err := db.GetAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
		})

		It("preserves usage of surviving applications", func() {
			_, err := db.Reconcile(candidates("a", "b"))
			Expect(err).NotTo(HaveOccurred())
			clock = clock.Add(time.Hour)
			Expect(db.RecordLaunch("a")).To(Succeed())
			Expect(db.RecordLaunch("a")).To(Succeed())

			clock = clock.Add(24 * time.Hour)
			added, err := db.Reconcile(candidates("a", "d"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(added)).To(Equal([]string{"d"}))

			rec, err := db.Get("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.UsageCount).To(Equal(int64(2)))
			Expect(*rec.LastUsed).To(Equal(time.Unix(1_700_000_000, 0).Add(time.Hour).Unix()))
			Expect(rec.AddedDate).To(Equal(int64(1_700_000_000)))

			gone, err := db.Get("b")
			Expect(err).NotTo(HaveOccurred())
			Expect(gone).To(BeNil())
		})

		It("does not rename surviving applications", func() {
			_, err := db.Reconcile(candidates("a"))
			Expect(err).NotTo(HaveOccurred())

			renamed := []apps.Application{apps.New("Renamed", "a", "/other")}
			added, err := db.Reconcile(renamed)
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(BeEmpty())

			rec, err := db.Get("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Name).To(Equal("name-a"))
		})

		It("deletes everything for an empty scan", func() {
			_, err := db.Reconcile(candidates("a", "b", "c", "d"))
			Expect(err).NotTo(HaveOccurred())

			added, err := db.Reconcile(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(BeEmpty())

			n, err := db.Count()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})

		It("keeps the first of duplicate ids", func() {
			scan := []apps.Application{
				apps.New("First", "dup", "/first"),
				apps.New("Other", "x", "/x"),
				apps.New("Second", "dup", "/second"),
				apps.New("Nameless", "", "/nowhere"),
			}
			added, err := db.Reconcile(scan)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(added)).To(Equal([]string{"dup", "x"}))
			Expect(added[0].Name).To(Equal("First"))
		})

		It("handles sets larger than one statement chunk", func() {
			var big []string
			for i := 0; i < 1200; i++ {
				big = append(big, fmt.Sprintf("app-%04d", i))
			}
			added, err := db.Reconcile(candidates(big...))
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(HaveLen(1200))

			added, err = db.Reconcile(candidates(big[:10]...))
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(BeEmpty())

			n, err := db.Count()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(10))
		})

		It("fails as a store error on a closed database", func() {
			Expect(db.Close()).To(Succeed())
			_, err := db.Reconcile(candidates("a"))
			var storeErr *Error
			Expect(errors.As(err, &storeErr)).To(BeTrue())
			Expect(storeErr.Op).To(Equal("reconcile"))
		})
	})

	Describe("RecordLaunch", func() {
		BeforeEach(func() {
			_, err := db.Reconcile(candidates("a"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("increments usage and stamps last_used", func() {
			Expect(db.RecordLaunch("a")).To(Succeed())
			rec, err := db.Get("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.UsageCount).To(Equal(int64(1)))
			Expect(rec.LastUsed).NotTo(BeNil())
			Expect(*rec.LastUsed).To(Equal(clock.Unix()))
		})

		It("ignores empty and unknown ids", func() {
			Expect(db.RecordLaunch("")).To(Succeed())
			Expect(db.RecordLaunch("missing")).To(Succeed())

			n, err := db.Count()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})
	})

	Describe("ImportUsage", func() {
		It("adds counts matched by id or path", func() {
			_, err := db.Reconcile(candidates("a", "b"))
			Expect(err).NotTo(HaveOccurred())

			updated, err := db.ImportUsage(map[string]int64{
				"a":       3,
				"/path/b": 5,
				"ghost":   7,
				"":        1,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated).To(Equal(2))

			a, _ := db.Get("a")
			b, _ := db.Get("b")
			Expect(a.UsageCount).To(Equal(int64(3)))
			Expect(b.UsageCount).To(Equal(int64(5)))
			Expect(a.LastUsed).To(BeNil())
		})
	})

	It("converts records to applications", func() {
		last := int64(42)
		app := Record{AppID: "id", Name: "n", Path: "p", UsageCount: 3, LastUsed: &last, AddedDate: 7}.Application()
		Expect(app.AppID).To(Equal("id"))
		Expect(app.UsageCount).To(Equal(int64(3)))
		Expect(app.LastUsed).To(Equal(int64(42)))
		Expect(app.AddedDate).To(Equal(int64(7)))

		Expect(Record{AppID: "id"}.Application().LastUsed).To(BeZero())
	})
})

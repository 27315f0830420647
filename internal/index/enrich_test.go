package index

import (
	"path/filepath"
	"time"

	"github.com/0xADE/ade-launchd/internal/store"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Enrich", func() {
	now := time.Unix(1_700_000_000, 0)
	twoDaysAgo := now.Add(-48 * time.Hour).Unix()

	records := []store.Record{
		{AppID: "/usr/bin/code", Name: "code", Path: "/usr/bin/code", UsageCount: 10, LastUsed: &twoDaysAgo},
		{AppID: "Calc!App", Name: "Calculator", Path: "Calc_1.0_x64__id", UsageCount: 4},
	}

	It("joins aliases by path or id", func() {
		set := Enrich(records, map[string]string{
			"/usr/bin/code": "Visual Studio Code",
			"Calc!App":      "Calc",
		}, "", now)
		Expect(set[0].Alias).To(Equal("Visual Studio Code"))
		Expect(set[0].Name).To(Equal("code"))
		Expect(set[1].Alias).To(Equal("Calc"))
	})

	It("derives icon paths and recency", func() {
		set := Enrich(records, nil, "/cache/icons", now)
		Expect(set[0].IconPath).To(Equal(filepath.Join("/cache/icons", "24d81a85a44a869b.png")))
		Expect(set[0].UsageRecencyScore).To(BeNumerically("~", 10.0/3.0, 1e-9))
		Expect(set[1].UsageRecencyScore).To(Equal(4.0))
	})

	It("leaves icon paths empty without a cache dir", func() {
		set := Enrich(records, nil, "", now)
		Expect(set[0].IconPath).To(BeEmpty())
	})

	It("does not modify the records", func() {
		Enrich(records, map[string]string{"/usr/bin/code": "x"}, "/icons", now)
		Expect(records[0].Name).To(Equal("code"))
		Expect(*records[0].LastUsed).To(Equal(twoDaysAgo))
	})
})

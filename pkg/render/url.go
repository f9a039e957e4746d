package render

import (
	"strconv"
	"strings"

	"github.com/txn2/plotwatch/pkg/listing"
)

// PaissaDBBaseURL is the PaissaDB website.
const PaissaDBBaseURL = "https://zhu.codes/paissa"

// PaissaDBURL links to the PaissaDB website with the same filters applied.
// Plot and ward filters are converted to the website's 0-based indices.
func PaissaDBURL(worldID int, f listing.FilterSpec) string {
	var b strings.Builder
	b.WriteString(PaissaDBBaseURL)
	b.WriteString("?world=")
	b.WriteString(strconv.Itoa(worldID))

	param := func(name string, v int) {
		b.WriteString("&" + name + "=" + strconv.Itoa(v))
	}
	if f.Size != nil {
		param("sizes", int(*f.Size))
	}
	if f.District != nil {
		param("districts", int(*f.District))
	}
	if f.Phase != nil {
		param("phases", int(*f.Phase))
	}
	if f.Tenants != nil {
		param("tenants", int(*f.Tenants))
	}
	if f.Plot != nil {
		param("plots", *f.Plot-1)
		param("plots", *f.Plot-1+30)
	}
	if f.Ward != nil {
		param("wards", *f.Ward-1)
	}
	return b.String()
}

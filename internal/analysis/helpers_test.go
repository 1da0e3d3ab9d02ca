package analysis

import (
	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

var scalarColumns = []string{
	verif.ColDesc, verif.ColFcstLead, verif.ColFcstValidBeg, verif.ColFcstVar, verif.ColFcstUnits,
	verif.ColFcstLev, verif.ColObType, verif.ColVxMask, verif.ColTotal,
	"FBAR", "OBAR", "FOBAR", "FFBAR", "OOBAR",
}

type row struct {
	desc  string
	lead  int // hours
	valid string
	v     string
	lev   string
	total float64
	sums  verif.PartialSums
}

func (r row) record() verif.Record {
	desc := r.desc
	if desc == "" {
		desc = "ctrl"
	}
	v := r.v
	if v == "" {
		v = "TMP"
	}
	lev := r.lev
	if lev == "" {
		lev = "Z2"
	}
	valid := r.valid
	if valid == "" {
		valid = "20220201_000000"
	}
	return verif.Record{
		Desc:         desc,
		FcstLead:     verif.LeadFromHours(r.lead),
		FcstValidBeg: valid,
		FcstVar:      v,
		FcstUnits:    "K",
		FcstLev:      lev,
		ObType:       "ADPSFC",
		VxMask:       "FULL",
		Total:        r.total,
		Sums:         r.sums,
	}
}

func table(rows ...row) *verif.Table {
	recs := make([]verif.Record, len(rows))
	for i, r := range rows {
		recs[i] = r.record()
	}
	return verif.NewTable(append([]string(nil), scalarColumns...), recs)
}

// sums builds scalar partial sums from forecast/observation means and
// second moments.
func sums(fbar, obar, fobar, ffbar, oobar float64) verif.PartialSums {
	return verif.PartialSums{FBar: fbar, OBar: obar, FOBar: fobar, FFBar: ffbar, OOBar: oobar}
}

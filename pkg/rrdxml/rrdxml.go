// Package rrdxml renders an RR-store export as the RRD-style XML document
// the forwarded-HTTP path serves (spec §4.8): a single <xport> with
// <meta>/<data>, one <entry> per legend column, one <row> per time step.
// Struct tags follow this module's own declarative-tag convention for
// serialization schemas, adapted from JSON struct tags to XML ones.
package rrdxml

import (
	"encoding/xml"
	"math"
	"strconv"

	"github.com/xcp-ng/xcp-metrics-go/internal/rrstore"
)

type xport struct {
	XMLName xml.Name `xml:"xport"`
	Meta    meta     `xml:"meta"`
	Data    data     `xml:"data"`
}

type meta struct {
	Start   int64  `xml:"start"`
	Step    int    `xml:"step"`
	End     int64  `xml:"end"`
	Rows    int    `xml:"rows"`
	Columns int    `xml:"columns"`
	Legend  legend `xml:"legend"`
}

type legend struct {
	Entries []string `xml:"entry"`
}

type data struct {
	Rows []row `xml:"row"`
}

type row struct {
	T      int64   `xml:"t"`
	Values []value `xml:"v"`
}

type value struct {
	Text string `xml:",chardata"`
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Render serializes x as the RRD XML document, with a leading
// XML declaration matching the style of other hand-emitted XML in this
// daemon's protocol surface (XML-RPC envelopes).
func Render(x rrstore.RrdXport) ([]byte, error) {
	rows := make([]row, len(x.Data))
	for i, r := range x.Data {
		values := make([]value, len(r.Values))
		for j, v := range r.Values {
			values[j] = value{Text: formatValue(v)}
		}
		rows[i] = row{T: r.Timestamp.Unix(), Values: values}
	}

	doc := xport{
		Meta: meta{
			Start:   x.Start.Unix(),
			Step:    x.StepSecs,
			End:     x.End.Unix(),
			Rows:    len(x.Data),
			Columns: len(x.Legend),
			Legend:  legend{Entries: x.Legend},
		},
		Data: data{Rows: rows},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

package export

import (
	"time"

	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
	"github.com/xcp-ng/xcp-metrics-go/pkg/rrddv3"
)

// WriteBinary renders set using the same envelope+payload wire format as
// the v3 ingest path (spec §4.8: "OpenMetrics binary... same semantic model
// serialized with the wire schema corresponding to §4.3's payload").
func WriteBinary(set *metrics.MetricSet) []byte {
	return rrddv3.Write(time.Now().UTC(), set)
}

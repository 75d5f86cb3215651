package domain

// TrafficClass is the verdict a classifier assigns to one captured flow.
type TrafficClass string

const (
	ClassBenign     TrafficClass = "BENIGN"
	ClassBruteForce TrafficClass = "BRUTE_FORCE"
	ClassDDoS       TrafficClass = "DDOS"
	ClassPortScan   TrafficClass = "PORT_SCAN"
)

// Malicious reports whether a verdict should trigger enforcement.
func (c TrafficClass) Malicious() bool {
	switch c {
	case ClassBruteForce, ClassDDoS, ClassPortScan:
		return true
	}
	return false
}

// FeatureColumns is the ordered set of capture CSV columns the classifier
// consumes. The order must match the model's training set.
var FeatureColumns = []string{
	"src_port",
	"dst_port",
	"flow_byts_s",
	"flow_pkts_s",
	"fwd_pkts_s",
	"bwd_pkts_s",
	"bwd_pkt_len_min",
	"fwd_seg_size_min",
	"bwd_iat_max",
	"bwd_iat_min",
	"bwd_iat_mean",
	"bwd_iat_std",
	"init_bwd_win_byts",
}

// FlowRecord is one row of a capture file reduced to the classifier's
// feature vector. Features is aligned with FeatureColumns; columns missing
// from the file are zero-filled. SrcIP may be empty when the capture did not
// record one.
type FlowRecord struct {
	SrcIP    string
	Features []float64
}

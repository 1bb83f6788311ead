package decision

import "github.com/ayusman/signtalk/internal/labels"

// Policy decides whether a smoothed base label is promoted to its compound
// form. A promotion needs a stable base label and repeated motion.
type Policy struct {
	Promotions      *labels.PromotionTable
	BaseMajorityMin float64
	MinPeaks        int
}

// Default policy thresholds.
const (
	DefaultBaseMajorityMin = 0.65
	DefaultMinPeaks        = 2
)

// Outcome is the committed result of one recognition.
type Outcome struct {
	Final    labels.Label `json:"final"`
	Base     labels.Label `json:"base"`
	Fraction float64      `json:"fraction"`
	Peaks    int          `json:"peaks"`
	Promoted bool         `json:"promoted"`
}

// Decide applies the promotion rule to a majority label.
func (p Policy) Decide(label labels.Label, fraction float64, peaks int) Outcome {
	out := Outcome{Final: label, Base: label, Fraction: fraction, Peaks: peaks}
	if label == labels.None {
		return out
	}

	compound, ok := p.Promotions.Promote(label)
	if ok && fraction >= p.BaseMajorityMin && peaks >= p.MinPeaks {
		out.Final = compound
		out.Promoted = true
	}
	return out
}

package services

// Trend labels the short-term swing pattern of a series.
type Trend string

const (
	TrendUp    Trend = "uptrend"
	TrendDown  Trend = "downtrend"
	TrendRange Trend = "range"
)

// MSB labels a market structure break.
type MSB string

const (
	MSBNone    MSB = ""
	MSBBullish MSB = "bullish"
	MSBBearish MSB = "bearish"
)

// StructureClassifier derives trend and structure-break state from
// confirmed pivots.
type StructureClassifier struct{}

// NewStructureClassifier creates a classifier.
func NewStructureClassifier() *StructureClassifier {
	return &StructureClassifier{}
}

// Classify labels the trend from the last two swing highs and lows.
// Uptrend needs both pairs strictly ascending, downtrend both strictly
// descending. Anything else, including too few pivots, is range.
func (sc *StructureClassifier) Classify(highs, lows []Pivot) Trend {
	if len(highs) < 2 || len(lows) < 2 {
		return TrendRange
	}
	h1, h2 := highs[len(highs)-2].Price, highs[len(highs)-1].Price
	l1, l2 := lows[len(lows)-2].Price, lows[len(lows)-1].Price
	switch {
	case h2 > h1 && l2 > l1:
		return TrendUp
	case h2 < h1 && l2 < l1:
		return TrendDown
	default:
		return TrendRange
	}
}

// DetectBreak reports a market structure break. Bullish: the recent
// swing highs were descending yet the last close cleared the most
// recent one. Bearish is the mirror on ascending swing lows.
func (sc *StructureClassifier) DetectBreak(highs, lows []Pivot, lastClose float64) MSB {
	if len(highs) >= 2 {
		prev, last := highs[len(highs)-2].Price, highs[len(highs)-1].Price
		if last < prev && lastClose > last {
			return MSBBullish
		}
	}
	if len(lows) >= 2 {
		prev, last := lows[len(lows)-2].Price, lows[len(lows)-1].Price
		if last > prev && lastClose < last {
			return MSBBearish
		}
	}
	return MSBNone
}

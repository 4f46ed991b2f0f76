package types

type IndicatorType string

const (
	IndicatorTypeSMA        IndicatorType = "sma"
	IndicatorTypeEMA        IndicatorType = "ema"
	IndicatorTypeRSI        IndicatorType = "rsi"
	IndicatorTypeATR        IndicatorType = "atr"
	IndicatorTypeCHOP       IndicatorType = "chop"
	IndicatorTypeBollinger  IndicatorType = "bollinger"
	IndicatorTypeMACD       IndicatorType = "macd"
	IndicatorTypeStochastic IndicatorType = "stochastic"
	IndicatorTypeVWAP       IndicatorType = "vwap"
	IndicatorTypeOBV        IndicatorType = "obv"
)

// IndicatorValue is a tagged variant: either a single number or a record
// of named numbers (Bollinger, MACD, Stochastic).
type IndicatorValue struct {
	scalar   float64
	record   map[string]float64
	isRecord bool
}

// ScalarValue wraps a single number.
func ScalarValue(v float64) IndicatorValue {
	return IndicatorValue{scalar: v}
}

// RecordValue wraps a named-field record.
func RecordValue(fields map[string]float64) IndicatorValue {
	return IndicatorValue{record: fields, isRecord: true}
}

// IsRecord reports whether the value carries named fields.
func (v IndicatorValue) IsRecord() bool {
	return v.isRecord
}

// Scalar returns the scalar payload. ok is false for records.
func (v IndicatorValue) Scalar() (float64, bool) {
	if v.isRecord {
		return 0, false
	}

	return v.scalar, true
}

// Field returns a named field of a record value.
func (v IndicatorValue) Field(name string) (float64, bool) {
	if !v.isRecord {
		return 0, false
	}

	f, ok := v.record[name]

	return f, ok
}

// Fields returns a copy of the record payload, nil for scalars.
func (v IndicatorValue) Fields() map[string]float64 {
	if !v.isRecord {
		return nil
	}

	out := make(map[string]float64, len(v.record))
	for k, f := range v.record {
		out[k] = f
	}

	return out
}

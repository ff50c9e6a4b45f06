package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// MetricKind discriminates the known metric payload shapes.
type MetricKind string

const (
	KindSleep         MetricKind = "sleep"
	KindActivity      MetricKind = "activity"
	KindHeartRate     MetricKind = "heart_rate"
	KindBloodPressure MetricKind = "blood_pressure"

	// KindGeneric is the fallback for free-form key→value payloads.
	KindGeneric MetricKind = "generic"
)

// Field is one key/value pair of a metric payload. Fields carry an explicit
// order so that two logically identical payloads always serialize to the
// same canonical text.
type Field struct {
	Key   string
	Value interface{}
}

// SleepValue is the payload shape for sleep metrics.
type SleepValue struct {
	DurationHours float64 `json:"duration_hours"`
	DeepHours     float64 `json:"deep_hours,omitempty"`
	RemHours      float64 `json:"rem_hours,omitempty"`
	Score         int     `json:"score,omitempty"`
}

// ActivityValue is the payload shape for activity metrics.
type ActivityValue struct {
	Steps         int     `json:"steps"`
	ActiveMinutes int     `json:"active_minutes,omitempty"`
	CaloriesBurnt float64 `json:"calories_burnt,omitempty"`
}

// HeartRateValue is the payload shape for heart rate metrics.
type HeartRateValue struct {
	RestingBPM int `json:"resting_bpm"`
	AverageBPM int `json:"average_bpm,omitempty"`
	MaxBPM     int `json:"max_bpm,omitempty"`
}

// BloodPressureValue is the payload shape for blood pressure metrics.
type BloodPressureValue struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// MetricValue is a tagged union over the known metric payload shapes plus a
// generic ordered key→value fallback. Exactly one variant is set, indicated
// by Kind.
type MetricValue struct {
	Kind MetricKind `json:"kind"`

	Sleep         *SleepValue         `json:"sleep,omitempty"`
	Activity      *ActivityValue      `json:"activity,omitempty"`
	HeartRate     *HeartRateValue     `json:"heart_rate,omitempty"`
	BloodPressure *BloodPressureValue `json:"blood_pressure,omitempty"`

	// Generic holds the fallback payload as an unordered mapping; Fields()
	// imposes a stable (sorted) order on it.
	Generic map[string]interface{} `json:"generic,omitempty"`
}

// GenericValue builds a MetricValue from a free-form mapping.
func GenericValue(fields map[string]interface{}) MetricValue {
	return MetricValue{Kind: KindGeneric, Generic: fields}
}

// Fields flattens the value into an ordered field list. Known shapes use a
// fixed field order; the generic variant sorts keys lexicographically. This
// ordering is what makes the canonical text serialization deterministic
// independent of map iteration order.
func (v MetricValue) Fields() []Field {
	switch v.Kind {
	case KindSleep:
		if v.Sleep == nil {
			return nil
		}
		return []Field{
			{"duration_hours", v.Sleep.DurationHours},
			{"deep_hours", v.Sleep.DeepHours},
			{"rem_hours", v.Sleep.RemHours},
			{"score", v.Sleep.Score},
		}
	case KindActivity:
		if v.Activity == nil {
			return nil
		}
		return []Field{
			{"steps", v.Activity.Steps},
			{"active_minutes", v.Activity.ActiveMinutes},
			{"calories_burnt", v.Activity.CaloriesBurnt},
		}
	case KindHeartRate:
		if v.HeartRate == nil {
			return nil
		}
		return []Field{
			{"resting_bpm", v.HeartRate.RestingBPM},
			{"average_bpm", v.HeartRate.AverageBPM},
			{"max_bpm", v.HeartRate.MaxBPM},
		}
	case KindBloodPressure:
		if v.BloodPressure == nil {
			return nil
		}
		return []Field{
			{"systolic", v.BloodPressure.Systolic},
			{"diastolic", v.BloodPressure.Diastolic},
		}
	default:
		keys := make([]string, 0, len(v.Generic))
		for k := range v.Generic {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, Field{k, v.Generic[k]})
		}
		return fields
	}
}

// FlattenValue renders a single field value as text. Nested maps and slices
// use compact JSON, which sorts map keys and therefore stays stable across
// runs.
func FlattenValue(val interface{}) string {
	switch t := val.(type) {
	case string:
		return t
	case nil:
		return "null"
	case float64, float32, int, int32, int64, bool:
		return fmt.Sprintf("%v", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

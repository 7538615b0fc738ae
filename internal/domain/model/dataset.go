package model

import "time"

// ActivitySummary is one recorded workout from the activity provider.
type ActivitySummary struct {
	ActivityID     int64
	StartTime      time.Time
	Type           string
	Name           string
	ElapsedSeconds int
	DistanceMeters float64
	AverageHR      float64
	MaxHR          float64
	AverageWatts   float64
	Calories       float64
}

// ActivitySample is a single per-second stream point of an activity.
// HRZone is filled in by the refresh from the current resting heart rate.
type ActivitySample struct {
	ActivityID    int64
	ActivityStart time.Time
	Timestamp     time.Time
	HeartRate     int
	Watts         int
	HRZone        int
}

// ReadinessSummary is the provider's daily readiness report.
type ReadinessSummary struct {
	Day                  time.Time
	Score                int
	HRVBalance           int
	RestingHRScore       int
	TemperatureDeviation float64
}

// SleepSummary is one night of sleep keyed by the day it is reported on.
type SleepSummary struct {
	Day               time.Time
	BedtimeStart      time.Time
	BedtimeEnd        time.Time
	TotalSleepSeconds int
	Efficiency        int
	LowestHeartRate   int
	AverageHRV        float64
}

// SleepStage is a hypnogram stage.
type SleepStage string

const (
	SleepStageDeep  SleepStage = "deep"
	SleepStageLight SleepStage = "light"
	SleepStageREM   SleepStage = "rem"
	SleepStageAwake SleepStage = "awake"
)

// SleepSample is a five-minute hypnogram interval.
type SleepSample struct {
	Day       time.Time
	Timestamp time.Time
	Stage     SleepStage
}

// BodyComposition is one scale measurement.
type BodyComposition struct {
	MeasuredAt   time.Time
	WeightKg     float64
	FatRatio     float64
	MuscleMassKg float64
	BoneMassKg   float64
	HydrationKg  float64
}

// StrengthSet is a single logged set of a strength workout.
type StrengthSet struct {
	PerformedAt time.Time
	WorkoutID   string
	Exercise    string
	SetIndex    int
	Reps        int
	WeightKg    float64
}

// Dataset is everything one provider returned for a pull window. Only the
// slices belonging to Provider are populated.
type Dataset struct {
	Provider         ProviderID
	Activities       []ActivitySummary
	ActivitySamples  []ActivitySample
	Readiness        []ReadinessSummary
	Sleep            []SleepSummary
	SleepSamples     []SleepSample
	BodyCompositions []BodyComposition
	StrengthSets     []StrengthSet
}

// Len returns the total number of rows across all slices.
func (d Dataset) Len() int {
	return len(d.Activities) + len(d.ActivitySamples) +
		len(d.Readiness) + len(d.Sleep) + len(d.SleepSamples) +
		len(d.BodyCompositions) + len(d.StrengthSets)
}

// IsEmpty reports whether the provider returned no rows at all.
func (d Dataset) IsEmpty() bool {
	return d.Len() == 0
}

package model

import "time"

// Athlete is the singleton profile the refresh preconditions are checked against.
type Athlete struct {
	Name      string
	Birthdate time.Time
	Sex       string
	WeightKg  float64
	RestingHR int
	RunFTP    int
	RideFTP   int
	UpdatedAt time.Time
}

// Complete reports whether every field a sync depends on has been filled in.
func (a Athlete) Complete() bool {
	return a.Name != "" &&
		!a.Birthdate.IsZero() &&
		a.Sex != "" &&
		a.WeightKg > 0 &&
		a.RestingHR > 0 &&
		a.RunFTP > 0 &&
		a.RideFTP > 0
}

// Age returns the athlete's age in whole years at the given instant.
func (a Athlete) Age(at time.Time) int {
	if a.Birthdate.IsZero() {
		return 0
	}
	years := at.Year() - a.Birthdate.Year()
	if at.Month() < a.Birthdate.Month() || (at.Month() == a.Birthdate.Month() && at.Day() < a.Birthdate.Day()) {
		years--
	}
	return years
}

// MaxHeartRate estimates maximum heart rate as 220 minus age.
func (a Athlete) MaxHeartRate(at time.Time) int {
	return 220 - a.Age(at)
}

package model

// Heart rate reserve fractions marking the lower bound of zones 1 to 5.
var zoneFloors = [5]float64{0.50, 0.60, 0.70, 0.80, 0.90}

// HeartRateZone classifies hr into a zone 0..5 using the Karvonen method.
// Zone 0 means below zone 1 or that the inputs are unusable.
func HeartRateZone(hr, restingHR, maxHR int) int {
	if hr <= 0 || restingHR <= 0 || maxHR <= restingHR {
		return 0
	}

	reserve := float64(hr-restingHR) / float64(maxHR-restingHR)

	zone := 0
	for i, floor := range zoneFloors {
		if reserve >= floor {
			zone = i + 1
		}
	}
	return zone
}

package pricing

import (
	"errors"
	"math"
)

// ErrInvalidMeasurement indicates a negative or non-finite meter reading.
var ErrInvalidMeasurement = errors.New("pricing: invalid measurement")

// Cost prices the delivered energy at the charger's current rate.
// The rate is read at stop time; there is no tariff lock at session start.
func Cost(energyKWh, pricePerKWh float64) (float64, error) {
	if energyKWh < 0 || math.IsNaN(energyKWh) || math.IsInf(energyKWh, 0) {
		return 0, ErrInvalidMeasurement
	}
	if pricePerKWh < 0 || math.IsNaN(pricePerKWh) || math.IsInf(pricePerKWh, 0) {
		return 0, ErrInvalidMeasurement
	}
	return energyKWh * pricePerKWh, nil
}

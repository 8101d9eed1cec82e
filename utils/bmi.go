package utils

import "time"

// BMI expects height in centimeters and weight in kilograms. Inputs are assumed positive.
func BMI(heightCm, weightKg float64) float64 {
	h := heightCm / 100.0 // to meters
	return weightKg / (h * h)
}

func BMICategory(bmi float64) string {
	switch {
	case bmi <= 0:
		return ""
	case bmi < 18.5:
		return "Underweight"
	case bmi < 25.0:
		return "Normal weight"
	case bmi < 30.0:
		return "Overweight"
	case bmi < 35.0:
		return "Obesity class I"
	case bmi < 40.0:
		return "Obesity class II"
	default:
		return "Obesity class III"
	}
}

// CalculateAge returns full years elapsed between birthday and now.
func CalculateAge(birthday, now time.Time) int {
	if birthday.IsZero() || birthday.After(now) {
		return 0
	}
	age := now.Year() - birthday.Year()
	if now.Before(birthday.AddDate(age, 0, 0)) {
		age--
	}
	return age
}

package geo

import "math"

// EarthRadiusKm - радиус Земли в километрах для формулы гаверсинуса
const EarthRadiusKm = 6371.0

// Distance вычисляет расстояние по большому кругу между двумя точками
// в километрах по формуле гаверсинуса
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// ETA возвращает расчетное время в пути в минутах при заданной
// средней скорости в км/ч. Скорость передается снаружи, чтобы ее
// можно было настраивать без изменения формулы.
func ETA(fromLat, fromLng, toLat, toLng, avgSpeedKmH float64) float64 {
	if avgSpeedKmH <= 0 {
		return 0
	}
	return Distance(fromLat, fromLng, toLat, toLng) / avgSpeedKmH * 60
}

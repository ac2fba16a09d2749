package models

// Location - координаты точки на карте
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DriverPosition - последняя известная позиция водителя
type DriverPosition struct {
	DriverID uint    `json:"driverId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	IsOnline bool    `json:"isOnline"`
}

package model

import "time"

// Direction is the plotted symbol of a single box: X for a rising step,
// O for a falling one.
type Direction string

const (
	DirX Direction = "X"
	DirO Direction = "O"
)

// Box is one price increment on the chart. Price and Direction are fixed
// once the box is placed; Marker may be set afterwards (month labels).
type Box struct {
	Price     float64   `json:"price"`
	Direction Direction `json:"direction"`
	Marker    string    `json:"marker,omitempty"`
}

var monthMarkers = [12]string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "A", "B", "C"}

// MonthMarker returns the label stamped on the first box of a new month:
// "1".."9" for January through September, then "A", "B", "C".
func MonthMarker(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthMarkers[m-1]
}

// IsMonthMarker reports whether s is one of the twelve month labels.
func IsMonthMarker(s string) bool {
	for _, m := range monthMarkers {
		if m == s {
			return true
		}
	}
	return false
}

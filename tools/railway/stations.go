package railway

import (
	"regexp"
	"sort"
	"strings"
)

// stationCodes maps major cities to their principal station code.
var stationCodes = map[string]string{
	"mumbai":             "CST",
	"delhi":              "NDLS",
	"new delhi":          "NDLS",
	"kolkata":            "HWH",
	"howrah":             "HWH",
	"chennai":            "MAS",
	"bangalore":          "SBC",
	"bengaluru":          "SBC",
	"hyderabad":          "HYB",
	"ahmedabad":          "ADI",
	"pune":               "PUNE",
	"jaipur":             "JP",
	"lucknow":            "LKO",
	"patna":              "PNBE",
	"bhopal":             "BPL",
	"amritsar":           "ASR",
	"nagpur":             "NGP",
	"thiruvananthapuram": "TVC",
	"trivandrum":         "TVC",
	"mysore":             "MYS",
	"mysuru":             "MYS",
}

var stationCodePattern = regexp.MustCompile(`^[A-Z]{2,5}$`)

// StationCode resolves a city name (case-insensitive) or an explicit station
// code to a station code.
func StationCode(place string) (string, bool) {
	place = strings.TrimSpace(place)
	if code, ok := stationCodes[strings.ToLower(place)]; ok {
		return code, true
	}
	if stationCodePattern.MatchString(place) {
		return place, true
	}
	return "", false
}

// KnownCities returns the city names with a built-in station code.
func KnownCities() []string {
	cities := make([]string, 0, len(stationCodes))
	for city := range stationCodes {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}

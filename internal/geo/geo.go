package geo

import (
	"regexp"
	"strconv"

	"github.com/hedeshawqiomer/my-app-backend/internal/apperr"
)

// Taxonomy is the static city -> districts table used to validate listing
// locations. It is built once at process start and never mutated.
type Taxonomy map[string][]string

// DefaultTaxonomy covers the four governorates the service accepts
// submissions for.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		"Erbil":     {"Hawler", "Soran", "Shaqlawa", "Mergasor", "Choman", "Koye", "Rwanduz", "Dashti Hawler"},
		"Sulaimani": {"Slemani", "Bazyan", "Penjwen", "Qaradax", "Sharbazher", "Dukan", "Ranya", "Pashadar", "Penjwin", "Chemchemal"},
		"Duhok":     {"Duhok", "Akre", "Zakho", "Amadiya", "Simele", "Bardarash", "Shekhan"},
		"Halabja":   {"Halbja", "Khurmal", "Byara", "Tawella"},
	}
}

// Validate checks an optional city/district pair. An empty city or district
// always passes; a district is only valid under its own city.
func (t Taxonomy) Validate(city, district string) error {
	if city == "" {
		return nil
	}
	districts, ok := t[city]
	if !ok {
		return apperr.Newf(apperr.KindValidation, "unknown city: %s", city)
	}
	if district == "" {
		return nil
	}
	for _, d := range districts {
		if d == district {
			return nil
		}
	}
	return apperr.Newf(apperr.KindValidation, "district %q is not in %s", district, city)
}

var coordPattern = regexp.MustCompile(`^(-?\d+(\.\d+)?),\s*(-?\d+(\.\d+)?)$`)

// Point is a parsed latitude/longitude pair.
type Point struct {
	Lat float64
	Lng float64
}

// String renders the canonical "lat,lng" form stored on posts.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// ParseCoordinates accepts only the exact "lat,lng" shape, e.g.
// "36.1909,44.0069". Anything else, including out-of-range values, fails
// validation. This is a strict contract, not a geocoder.
func ParseCoordinates(text string) (Point, error) {
	m := coordPattern.FindStringSubmatch(text)
	if m == nil {
		return Point{}, apperr.New(apperr.KindValidation, "location must be 'lat,lng' (e.g., 36.1909,44.0069)")
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Point{}, apperr.New(apperr.KindValidation, "location must be 'lat,lng' (e.g., 36.1909,44.0069)")
	}
	lng, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Point{}, apperr.New(apperr.KindValidation, "location must be 'lat,lng' (e.g., 36.1909,44.0069)")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Point{}, apperr.New(apperr.KindValidation, "location must be 'lat,lng' (e.g., 36.1909,44.0069)")
	}
	return Point{Lat: lat, Lng: lng}, nil
}

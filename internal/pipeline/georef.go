package pipeline

import "github.com/transitgrid/transitgrid/pkg/geo"

// referenceCities is the static geographic reference table used by the
// virtual-entity stage. A city listed here gets its hub placed at the
// reference coordinate; unlisted cities fall back to the member centroid.
var referenceCities = map[string]geo.Coordinate{
	"amsterdam":  {Lat: 52.3676, Lon: 4.9041},
	"rotterdam":  {Lat: 51.9244, Lon: 4.4777},
	"den haag":   {Lat: 52.0705, Lon: 4.3007},
	"utrecht":    {Lat: 52.0907, Lon: 5.1214},
	"eindhoven":  {Lat: 51.4416, Lon: 5.4697},
	"groningen":  {Lat: 53.2194, Lon: 6.5665},
	"maastricht": {Lat: 50.8514, Lon: 5.6910},
	"zwolle":     {Lat: 52.5168, Lon: 6.0830},
	"arnhem":     {Lat: 51.9851, Lon: 5.8987},
	"leeuwarden": {Lat: 53.2012, Lon: 5.7999},
}

package recommend

// Weights scale the temporal features before similarity is computed.
type Weights struct {
	Duration  float64
	StartHour float64
}

// Unweighted leaves every feature as is.
var Unweighted = Weights{Duration: 1, StartHour: 1}

// Encoder turns profiles and device vectors into numeric feature vectors over a fixed
// category universe, so column order is identical for every call:
//
//	[one-hot zone..., one-hot type..., duration, start hour, price]
//
// Categories outside the universe encode as an all-zero block.
type Encoder struct {
	zones  map[string]int
	types  map[string]int
	nZones int
	nTypes int
}

// NewEncoder creates an encoder for the given zones and device types.
func NewEncoder(zones, types []string) *Encoder {
	e := &Encoder{zones: make(map[string]int), types: make(map[string]int)}
	for _, z := range zones {
		if _, ok := e.zones[z]; !ok {
			e.zones[z] = e.nZones
			e.nZones++
		}
	}
	for _, t := range types {
		if _, ok := e.types[t]; !ok {
			e.types[t] = e.nTypes
			e.nTypes++
		}
	}
	return e
}

// Width is the length of every encoded vector.
func (e *Encoder) Width() int {
	return e.nZones + e.nTypes + 3
}

func (e *Encoder) encode(zone, typ string, duration, startHour, price float64, w Weights) []float64 {
	vec := make([]float64, e.Width())
	if i, ok := e.zones[zone]; ok {
		vec[i] = 1
	}
	if i, ok := e.types[typ]; ok {
		vec[e.nZones+i] = 1
	}
	n := e.nZones + e.nTypes
	vec[n] = duration * w.Duration
	vec[n+1] = startHour * w.StartHour
	vec[n+2] = price
	return vec
}

// EncodeProfile encodes a user profile.
func (e *Encoder) EncodeProfile(p Profile, w Weights) []float64 {
	return e.encode(p.Zone, p.Type, p.AvgDuration, p.AvgStartHour, p.AvgPrice, w)
}

// EncodeDevice encodes a device vector.
func (e *Encoder) EncodeDevice(v DeviceVector, w Weights) []float64 {
	return e.encode(v.Zone, v.Type, v.AvgDuration, v.AvgStartHour, v.AvgPrice, w)
}

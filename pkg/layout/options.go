package layout

import "math"

// Options configures the spatial model and the force solver. Zero values
// fall back to the defaults listed next to each field.
type Options struct {
	// Scene
	Width  float64 // default 800
	Height float64 // default 600
	Jitter float64 // default 10, half-width of the initial placement square
	Seed   int64   // default 1

	// Link force
	LinkDistance float64 // default 100
	LinkStrength float64 // default 0 (1/min(degree) per link)

	// Charge force
	ChargeStrength float64 // default -300
	Theta          float64 // default 0.9
	Exact          bool    // pairwise charge, ignores Theta
	DistanceMin    float64 // default 1
	DistanceMax    float64 // default +Inf

	// Centering force
	CenterStrength float64 // default 1

	// Collision force
	CollideRadius     float64 // default 30
	CollideStrength   float64 // default 1
	CollideIterations int     // default 1

	// Cooling
	AlphaMin      float64 // default 0.001
	AlphaDecay    float64 // default 1 - AlphaMin^(1/300)
	VelocityDecay float64 // default 0.4
	Reheat        float64 // default 0.3, alpha target while a node is dragged
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	var o *Options
	return o.withDefaults()
}

func (o *Options) withDefaults() Options {
	d := Options{
		Width:             800,
		Height:            600,
		Jitter:            10,
		Seed:              1,
		LinkDistance:      100,
		ChargeStrength:    -300,
		Theta:             0.9,
		DistanceMin:       1,
		DistanceMax:       math.Inf(1),
		CenterStrength:    1,
		CollideRadius:     30,
		CollideStrength:   1,
		CollideIterations: 1,
		AlphaMin:          0.001,
		VelocityDecay:     0.4,
		Reheat:            0.3,
	}
	if o == nil {
		d.AlphaDecay = 1 - math.Pow(d.AlphaMin, 1.0/300)
		return d
	}
	if o.Width > 0 {
		d.Width = o.Width
	}
	if o.Height > 0 {
		d.Height = o.Height
	}
	if o.Jitter > 0 {
		d.Jitter = o.Jitter
	}
	if o.Seed != 0 {
		d.Seed = o.Seed
	}
	if o.LinkDistance > 0 {
		d.LinkDistance = o.LinkDistance
	}
	if o.LinkStrength > 0 {
		d.LinkStrength = o.LinkStrength
	}
	if o.ChargeStrength != 0 {
		d.ChargeStrength = o.ChargeStrength
	}
	if o.Theta > 0 {
		d.Theta = o.Theta
	}
	d.Exact = o.Exact
	if o.DistanceMin > 0 {
		d.DistanceMin = o.DistanceMin
	}
	if o.DistanceMax > 0 {
		d.DistanceMax = o.DistanceMax
	}
	if o.CenterStrength > 0 {
		d.CenterStrength = o.CenterStrength
	}
	if o.CollideRadius > 0 {
		d.CollideRadius = o.CollideRadius
	}
	if o.CollideStrength > 0 {
		d.CollideStrength = o.CollideStrength
	}
	if o.CollideIterations > 0 {
		d.CollideIterations = o.CollideIterations
	}
	if o.AlphaMin > 0 {
		d.AlphaMin = o.AlphaMin
	}
	if o.VelocityDecay > 0 && o.VelocityDecay < 1 {
		d.VelocityDecay = o.VelocityDecay
	}
	if o.Reheat > 0 {
		d.Reheat = o.Reheat
	}
	d.AlphaDecay = 1 - math.Pow(d.AlphaMin, 1.0/300)
	if o.AlphaDecay > 0 && o.AlphaDecay < 1 {
		d.AlphaDecay = o.AlphaDecay
	}
	return d
}

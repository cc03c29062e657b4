package matrix

// Stamper is the write surface the Jacobian assembly paths and the
// augmentation blocks stamp into. Indices are 0-based.
type Stamper interface {
	Add(i, j int, value float64)
	Set(i, j int, value float64)
}

package netplay

import "math"

// Quantized encodings for game values. Positions and angles are lossy;
// they trade precision for per-update bandwidth.

// WriteVec2 quantizes a 2D position to two int16 fields. Each axis is
// clamped to the int16 range and truncated, never rounded; magnitudes
// beyond the range saturate instead of wrapping.
func (w *writer) WriteVec2(x, y float64) error {
	if err := w.WriteI16(quantizeAxis(x)); err != nil {
		return err
	}
	return w.WriteI16(quantizeAxis(y))
}

func (r *reader) ReadVec2() (x, y float64, err error) {
	xi, err := r.ReadI16()
	if err != nil {
		return 0, 0, err
	}
	yi, err := r.ReadI16()
	if err != nil {
		return 0, 0, err
	}
	return float64(xi), float64(yi), nil
}

func quantizeAxis(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32767 {
		return -32767
	}
	return int16(math.Trunc(v))
}

// WriteAngle stores an orientation in radians as a fixed-point uint16 of
// 1/angleResolution degree steps.
func (w *writer) WriteAngle(rad float64) error {
	deg := math.Mod(rad*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	return w.WriteU16(uint16(deg * angleResolution))
}

func (r *reader) ReadAngle() (float64, error) {
	v, err := r.ReadU16()
	if err != nil {
		return 0, err
	}
	return float64(v) / angleResolution * math.Pi / 180, nil
}

// WriteIdentity encodes a NetworkIdentity, generation first.
func (w *writer) WriteIdentity(id NetworkIdentity) error {
	if err := w.WriteU16(id.Generation); err != nil {
		return err
	}
	return w.WriteU16(id.Identifier)
}

func (r *reader) ReadIdentity() (NetworkIdentity, error) {
	gen, err := r.ReadU16()
	if err != nil {
		return NetworkIdentity{}, err
	}
	ident, err := r.ReadU16()
	if err != nil {
		return NetworkIdentity{}, err
	}
	return NetworkIdentity{Identifier: ident, Generation: gen}, nil
}

// WriteString encodes a length-prefixed UTF-8 run capped at max bytes.
// An oversized value is rejected before anything is written; strings are
// never silently truncated.
func (w *writer) WriteString(s string, max int) error {
	if len(s) > max {
		return errStringTooLong
	}
	if err := w.WriteU8(uint8(len(s))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(s))
}

func (r *reader) ReadString(max int) (string, error) {
	n, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	if int(n) > max {
		return "", errStringTooLong
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// stringSize is the encoded length of a bounded string field.
func stringSize(s string) int { return 1 + len(s) }

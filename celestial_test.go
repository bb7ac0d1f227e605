package orbprop

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestCelestialObjectFromString(t *testing.T) {
	for _, obj := range []CelestialObject{Earth, Sun, Moon} {
		got, err := CelestialObjectFromString(obj.Name)
		if err != nil {
			t.Fatalf("could not get %s: %s", obj, err)
		}
		if !got.Equals(obj) {
			t.Fatalf("got %s instead of %s", got, obj)
		}
	}
	if _, err := CelestialObjectFromString("Pluto"); err == nil {
		t.Fatal("Pluto is not supported")
	}
	if Earth.Equals(Moon) {
		t.Fatal("Earth is not the Moon")
	}
}

func TestAltitude(t *testing.T) {
	if h := Earth.Altitude(r3.Vec{X: Earth.Radius + 500}); !scalar.EqualWithinAbs(h, 500, 1e-9) {
		t.Fatalf("equatorial altitude %f", h)
	}
	polar := Earth.Radius * (1 - Earth.Flattening)
	if h := Earth.Altitude(r3.Vec{Z: polar + 500}); !scalar.EqualWithinAbs(h, 500, 1e-6) {
		t.Fatalf("polar altitude %f", h)
	}
	if h := Moon.Altitude(r3.Vec{X: 1000, Y: 1000, Z: 1000}); !scalar.EqualWithinAbs(h, 1732.0508075688772-Moon.Radius, 1e-9) {
		t.Fatalf("spherical altitude %f", h)
	}
}

package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBag_AbsentVersusEmpty(t *testing.T) {
	b := New("raw")
	assert.Equal(t, "raw", b.Value(TextKey))

	_, ok := b.Get("Out")
	assert.False(t, ok)
	assert.Equal(t, "", b.Value("Out"))

	b.Set("Out", "")
	v, ok := b.Get("Out")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestBag_DerivedHelpers(t *testing.T) {
	b := New("")
	b.SetValid("P", true)
	b.SetClean("P", "rest")
	b.SetParts("Parts", []string{"a", "b"})
	b.SetCapture("P", "num", "100")

	assert.Equal(t, "true", b.Value("P.Valid"))
	assert.True(t, b.Valid("P"))
	assert.Equal(t, "rest", b.Value("P.Clean"))
	assert.Equal(t, "a", b.Value("Parts[0]"))
	assert.Equal(t, "b", b.Value("Parts[1]"))
	assert.Equal(t, "2", b.Value("Parts.Length"))
	assert.Equal(t, "100", b.Value("P.num"))

	b.SetValid("P", false)
	assert.Equal(t, "false", b.Value("P.Valid"))
	assert.False(t, b.Valid("Missing"))
}

/*
TestBag_Harvest verifies that only assigned keys are harvested, that the
assigned value is kept even when the key is overwritten later, and that a
second Assign replaces the first.
*/
func TestBag_Harvest(t *testing.T) {
	b := New("x")
	b.Set("Scratch", "s")
	b.Assign("Product.Brand", "Chanel")
	b.Set("Product.Brand", "CHANEL")
	b.Assign("Product.Size", "50")
	b.Assign("Product.Size", "100")

	assert.Equal(t, map[string]string{
		"Product.Brand": "Chanel",
		"Product.Size":  "100",
	}, b.Harvest())
}

func TestBag_Update(t *testing.T) {
	b := New("")
	b.Assign("Unit", "oz")
	b.Update("Unit", "ml")
	assert.Equal(t, "ml", b.Value("Unit"))
	assert.Equal(t, map[string]string{"Unit": "ml"}, b.Harvest())

	b.Update("Scratch", "x")
	assert.Equal(t, "x", b.Value("Scratch"))
	assert.Equal(t, map[string]string{"Unit": "ml"}, b.Harvest(), "unassigned keys stay out of the record")
}

func TestIsDerived(t *testing.T) {
	cases := map[string]bool{
		"Product.Brand":       false,
		"Product.Brand.Valid": true,
		"X.Clean":             true,
		"Parts.Length":        true,
		"Parts[3]":            true,
		"Parts[x]":            false,
		"assign:Product":      true,
		"Text":                false,
	}
	for k, want := range cases {
		assert.Equal(t, want, IsDerived(k), k)
	}
}

func TestPlausibleKey(t *testing.T) {
	assert.True(t, PlausibleKey("Product.Unit"))
	assert.True(t, PlausibleKey("Parts[0]"))
	assert.False(t, PlausibleKey(""))
	assert.False(t, PlausibleKey("two words"))
	assert.False(t, PlausibleKey(".Unit"))
	assert.False(t, PlausibleKey("Unit."))
	assert.False(t, PlausibleKey("assign:Unit"))
}

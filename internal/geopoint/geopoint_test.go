package geopoint

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestExtract_Shapes(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *Point
	}{
		{"latitude/longitude", map[string]any{"latitude": 19.07, "longitude": 72.87}, &Point{ptr(19.07), ptr(72.87)}},
		{"lat/lng", map[string]any{"lat": 1.5, "lng": 2.5}, &Point{ptr(1.5), ptr(2.5)}},
		{"lat/lon", map[string]any{"lat": 1.0, "lon": 2.0}, &Point{ptr(1), ptr(2)}},
		{"lat/long", map[string]any{"lat": 1.0, "long": 3.0}, &Point{ptr(1), ptr(3)}},
		{"numeric strings", map[string]any{"latitude": " 10.5 ", "longitude": "20"}, &Point{ptr(10.5), ptr(20)}},
		{"zero is valid", map[string]any{"lat": 0, "lng": 0}, &Point{ptr(0), ptr(0)}},
		{"ints", map[string]any{"lat": 3, "lng": int64(4)}, &Point{ptr(3), ptr(4)}},
		{"json number", map[string]any{"lat": json.Number("7.25"), "lng": json.Number("8")}, &Point{ptr(7.25), ptr(8)}},
		{"sequence", []any{map[string]any{"lat": 1.0, "lng": 2.0}, map[string]any{"lat": 9.0, "lng": 9.0}}, &Point{ptr(1), ptr(2)}},
		{"nested sequence", []any{[]any{map[string]any{"lat": 5.0, "lng": 6.0}}}, &Point{ptr(5), ptr(6)}},
		{"typed map", map[string]float64{"latitude": 1, "longitude": 2}, &Point{ptr(1), ptr(2)}},
		{"raw json", json.RawMessage(`{"latitude": 4, "longitude": 5}`), &Point{ptr(4), ptr(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestExtract_PriorityOrder(t *testing.T) {
	p := Extract(map[string]any{
		"latitude": 1.0, "longitude": 2.0,
		"lat": 8.0, "lng": 9.0,
	})
	ll, ok := p.LatLng()
	require.True(t, ok)
	assert.InDelta(t, 1.0, ll.Lat, 1e-9)
	assert.InDelta(t, 2.0, ll.Lng, 1e-9)
}

func TestExtract_UncoercibleAxisIsNil(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
	}{
		{"word", map[string]any{"latitude": "north", "longitude": 2.0}},
		{"null", map[string]any{"latitude": nil, "longitude": 2.0}},
		{"blank", map[string]any{"latitude": "  ", "longitude": 2.0}},
		{"bool", map[string]any{"latitude": true, "longitude": 2.0}},
		{"nan", map[string]any{"latitude": math.NaN(), "longitude": 2.0}},
		{"object", map[string]any{"latitude": map[string]any{}, "longitude": 2.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Extract(tt.in)
			require.NotNil(t, p)
			assert.Nil(t, p.Lat)
			require.NotNil(t, p.Lng)
			assert.False(t, p.Valid())
			_, ok := p.LatLng()
			assert.False(t, ok)
		})
	}
}

func TestExtract_NoShape(t *testing.T) {
	for _, in := range []any{
		nil,
		map[string]any{},
		map[string]any{"latitude": 1.0},
		map[string]any{"x": 1, "y": 2},
		[]any{},
		"19.0,72.0",
		42,
		json.RawMessage(`not json`),
		(*map[string]any)(nil),
		map[int]any{1: 2},
	} {
		assert.Nil(t, Extract(in), "input %#v", in)
	}
}

func TestExtract_NeverPanics(t *testing.T) {
	cyclic := []any{nil}
	cyclic[0] = cyclic

	inputs := []any{
		cyclic,
		make(chan int),
		func() {},
		[]map[string]any{{"lat": 1, "lng": 2}},
		[2]float64{1, 2},
		struct{ Lat float64 }{1},
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Extract(in) })
	}
}

func TestNumber(t *testing.T) {
	assert.Equal(t, ptr(1.5), Number("1.5"))
	assert.Equal(t, ptr(-3), Number(int32(-3)))
	assert.Equal(t, ptr(2), Number(uint8(2)))
	assert.Nil(t, Number(math.Inf(1)))
	assert.Nil(t, Number("1.5x"))
	assert.Nil(t, Number(false))
	assert.Nil(t, Number((*float64)(nil)))
	assert.Equal(t, ptr(4), Number(ptr(4)))
}

func TestPoint_NilReceiver(t *testing.T) {
	var p *Point
	assert.False(t, p.Valid())
	_, ok := p.LatLng()
	assert.False(t, ok)
}

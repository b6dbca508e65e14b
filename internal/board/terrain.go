// Terrain painting using layered simplex noise.
// Terrain is presentation flavor only: no rule reads it. Each faction's
// start tile is later overridden to its habitat by game setup.
// See design doc Section 1.
package board

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Terrain enumerates the six tile kinds, one per faction habitat.
type Terrain uint8

const (
	TerrainMountain Terrain = iota // high, rocky
	TerrainMesa                    // high, dry
	TerrainSand                    // low, arid
	TerrainPlains                  // open grassland
	TerrainRiver                   // low, wet
	TerrainJungle                  // dense growth
)

var terrainNames = [...]string{
	TerrainMountain: "mountain",
	TerrainMesa:     "mesa",
	TerrainSand:     "sand",
	TerrainPlains:   "plains",
	TerrainRiver:    "river",
	TerrainJungle:   "jungle",
}

// Terrains lists all terrain kinds in presentation order.
var Terrains = [6]Terrain{
	TerrainMountain, TerrainMesa, TerrainSand,
	TerrainPlains, TerrainRiver, TerrainJungle,
}

// String returns the wire name of the terrain.
func (t Terrain) String() string {
	if int(t) < len(terrainNames) {
		return terrainNames[t]
	}
	return "unknown"
}

// MarshalText renders the terrain as its wire name in JSON payloads.
func (t Terrain) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTerrain maps a wire name back to its terrain kind.
func ParseTerrain(name string) (Terrain, bool) {
	for i, n := range terrainNames {
		if n == name {
			return Terrain(i), true
		}
	}
	return 0, false
}

// PaintTerrain assigns a terrain kind to every tile from two independent
// noise layers seeded off the room seed. Repainting with the same seed
// yields the same map.
func PaintTerrain(b *Board, seed int64) {
	elevNoise := opensimplex.NewNormalized(seed)
	wetNoise := opensimplex.NewNormalized(seed + 1)

	for _, c := range b.coords {
		// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2.
		x := float64(c.Q) + float64(c.R)*0.5
		y := float64(c.R) * math.Sqrt(3.0) / 2.0

		elev := octaveNoise(elevNoise, x, y, 3, 0.35, 0.5)
		wet := octaveNoise(wetNoise, x, y, 2, 0.30, 0.5)

		b.Tiles[c].Terrain = deriveTerrain(elev, wet)
	}
}

// deriveTerrain classifies a tile from its elevation and wetness.
func deriveTerrain(elev, wet float64) Terrain {
	if elev > 0.62 {
		if wet < 0.45 {
			return TerrainMesa
		}
		return TerrainMountain
	}
	if wet > 0.66 {
		return TerrainRiver
	}
	if wet > 0.52 {
		return TerrainJungle
	}
	if wet < 0.34 {
		return TerrainSand
	}
	return TerrainPlains
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

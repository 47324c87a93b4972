package arena

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Rect is an axis-aligned area on the ground plane.
type Rect struct {
	MinX float64 `yaml:"min_x"`
	MinZ float64 `yaml:"min_z"`
	MaxX float64 `yaml:"max_x"`
	MaxZ float64 `yaml:"max_z"`
}

func (r Rect) Contains(x, z float64) bool {
	return x >= r.MinX && x <= r.MaxX && z >= r.MinZ && z <= r.MaxZ
}

// Pit is a round hole in the floor. Anything entering it triggers a pit event.
type Pit struct {
	X      float64 `yaml:"x"`
	Z      float64 `yaml:"z"`
	Radius float64 `yaml:"radius"`
	Depth  float64 `yaml:"depth"`
}

func (p Pit) horizontalDistance(pos mgl64.Vec3) float64 {
	dx, dz := pos[0]-p.X, pos[2]-p.Z
	return mgl64.Vec2{dx, dz}.Len()
}

// Point is a spawn location.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (p Point) Vec() mgl64.Vec3 { return mgl64.Vec3{p.X, p.Y, p.Z} }

type Layout struct {
	Floor        Rect     `yaml:"floor"`
	Walkable     []Rect   `yaml:"walkable"`
	Pits         []Pit    `yaml:"pits"`
	LobbySpawns  []Point  `yaml:"lobby_spawns"`
	GameSpawns   []Point  `yaml:"game_spawns"`
	AnimalSpawns []Point  `yaml:"animal_spawns"`
	AnimalKinds  []string `yaml:"animal_kinds"`
}

// DefaultLayout is a 60x40 field with a lobby strip on the west side and two pits.
func DefaultLayout() Layout {
	return Layout{
		Floor: Rect{MinX: -40, MinZ: -20, MaxX: 30, MaxZ: 20},
		Walkable: []Rect{
			{MinX: -30, MinZ: -20, MaxX: 30, MaxZ: 20},
		},
		Pits: []Pit{
			{X: 18, Z: 8, Radius: 3, Depth: 1},
			{X: 18, Z: -8, Radius: 3, Depth: 1},
		},
		LobbySpawns: []Point{
			{X: -36, Z: -6}, {X: -36, Z: -2}, {X: -36, Z: 2}, {X: -36, Z: 6},
		},
		GameSpawns: []Point{
			{X: -20, Z: -9}, {X: -20, Z: -3}, {X: -20, Z: 3}, {X: -20, Z: 9},
		},
		AnimalSpawns: []Point{
			{X: -5, Z: -10}, {X: -5, Z: 0}, {X: -5, Z: 10}, {X: 5, Z: -5}, {X: 5, Z: 5},
		},
		AnimalKinds: []string{
			"Rat", "Ox", "Tiger", "Rabbit", "Dragon", "Snake",
			"Horse", "Goat", "Monkey", "Rooster", "Dog", "Pig",
		},
	}
}

// LoadLayout reads a YAML layout file. Sections left out of the file keep their default values.
func LoadLayout(path string) (Layout, error) {
	l := DefaultLayout()
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, fmt.Errorf("read layout: %w", err)
	}
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("arena layout %s: %w", path, err)
	}
	if err := l.Validate(); err != nil {
		return l, fmt.Errorf("arena layout %s: %w", path, err)
	}
	return l, nil
}

func (l Layout) Validate() error {
	if l.Floor.MaxX <= l.Floor.MinX || l.Floor.MaxZ <= l.Floor.MinZ {
		return errors.New("floor bounds are empty")
	}
	if len(l.Walkable) == 0 {
		return errors.New("no walkable area")
	}
	if len(l.AnimalSpawns) == 0 {
		return errors.New("no animal spawn points")
	}
	if len(l.AnimalKinds) == 0 {
		return errors.New("no animal kinds")
	}
	for i, p := range l.Pits {
		if p.Radius <= 0 || p.Depth <= 0 {
			return fmt.Errorf("pit %d: radius and depth must be positive", i)
		}
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/orca/internal/core/observability/log"
	"github.com/zeusync/orca/pkg/physics"
	"github.com/zeusync/orca/pkg/rvo"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config describes one simulation scenario.
type Config struct {
	LogLevel  string           `yaml:"log_level"`
	World     WorldConfig      `yaml:"world"`
	Grid      GridConfig       `yaml:"grid"`
	Obstacles []ObstacleConfig `yaml:"obstacles"`
	Agents    []AgentConfig    `yaml:"agents"`
	Groups    []GroupConfig    `yaml:"groups"`
	Run       RunConfig        `yaml:"run"`
	Replay    ReplayConfig     `yaml:"replay"`
	Server    ServerConfig     `yaml:"server"`
}

type WorldConfig struct {
	TimeStep      float64         `yaml:"time_step"`
	Workers       int             `yaml:"workers"` // <= 0 selects GOMAXPROCS
	AgentDefaults rvo.AgentParams `yaml:"agent_defaults"`
}

// GridConfig is the A* map. Rows are read top to bottom as y = 0, 1, ...
// and '#' marks a blocked cell.
type GridConfig struct {
	Rows         []string `yaml:"rows"`
	SearchRadius int      `yaml:"search_radius"`
}

type ObstacleConfig struct {
	Vertices []physics.Vector2 `yaml:"vertices"`
}

// AgentConfig places one agent. Params replaces the world defaults when
// set; Mass overrides only the mass.
type AgentConfig struct {
	Position physics.Vector2  `yaml:"position"`
	Goal     *physics.Vector2 `yaml:"goal"`
	Params   *rvo.AgentParams `yaml:"params"`
	Mass     float64          `yaml:"mass"`
}

// GroupConfig gathers agents, by index into Agents, behind one composite.
type GroupConfig struct {
	Members []int            `yaml:"members"`
	Goal    *physics.Vector2 `yaml:"goal"`
}

type RunConfig struct {
	Steps int `yaml:"steps"`
}

type ReplayConfig struct {
	Dir string `yaml:"dir"`
}

type ServerConfig struct {
	Listen       string  `yaml:"listen"`
	MaxFrameRate float64 `yaml:"max_frame_rate"` // 0 sends every tick
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		LogLevel: "info",
		World: WorldConfig{
			TimeStep: 0.1,
			AgentDefaults: rvo.AgentParams{
				NeighborDist:    10,
				MaxNeighbors:    10,
				TimeHorizon:     1,
				TimeHorizonObst: 1,
				Radius:          0.5,
				MaxSpeed:        3,
				Mass:            1,
			},
		},
		Grid: GridConfig{SearchRadius: 100},
		Run:  RunConfig{Steps: 1000},
	}
}

// Load decodes YAML over the defaults and validates the result. Empty
// input yields the defaults.
func Load(r io.Reader) (*Config, error) {
	c := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile is Load on the named file.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate reports the first inconsistency found.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	if c.World.TimeStep <= 0 {
		return fmt.Errorf("%w: world.time_step must be positive", ErrInvalid)
	}
	if err := validateParams("world.agent_defaults", c.World.AgentDefaults); err != nil {
		return err
	}
	if c.Grid.SearchRadius < 0 {
		return fmt.Errorf("%w: grid.search_radius must not be negative", ErrInvalid)
	}
	if c.Server.MaxFrameRate < 0 {
		return fmt.Errorf("%w: server.max_frame_rate must not be negative", ErrInvalid)
	}
	if c.Run.Steps < 0 {
		return fmt.Errorf("%w: run.steps must not be negative", ErrInvalid)
	}

	for i, o := range c.Obstacles {
		if len(o.Vertices) < 2 {
			return fmt.Errorf("%w: obstacles[%d] needs at least two vertices", ErrInvalid, i)
		}
	}

	for i, a := range c.Agents {
		if a.Params != nil {
			if err := validateParams(fmt.Sprintf("agents[%d].params", i), *a.Params); err != nil {
				return err
			}
		}
		if a.Mass < 0 {
			return fmt.Errorf("%w: agents[%d].mass must not be negative", ErrInvalid, i)
		}
	}

	owner := make(map[int]int)
	for gi, g := range c.Groups {
		for _, m := range g.Members {
			if m < 0 || m >= len(c.Agents) {
				return fmt.Errorf("%w: groups[%d] member %d out of range", ErrInvalid, gi, m)
			}
			if prev, ok := owner[m]; ok {
				return fmt.Errorf("%w: agent %d is in groups %d and %d", ErrInvalid, m, prev, gi)
			}
			owner[m] = gi
		}
	}

	return nil
}

func validateParams(path string, p rvo.AgentParams) error {
	switch {
	case p.Radius < 0:
		return fmt.Errorf("%w: %s.radius must not be negative", ErrInvalid, path)
	case p.MaxSpeed < 0:
		return fmt.Errorf("%w: %s.max_speed must not be negative", ErrInvalid, path)
	case p.NeighborDist < 0:
		return fmt.Errorf("%w: %s.neighbor_dist must not be negative", ErrInvalid, path)
	case p.MaxNeighbors < 0:
		return fmt.Errorf("%w: %s.max_neighbors must not be negative", ErrInvalid, path)
	case p.TimeHorizon <= 0 || p.TimeHorizonObst <= 0:
		return fmt.Errorf("%w: %s time horizons must be positive", ErrInvalid, path)
	}
	return nil
}

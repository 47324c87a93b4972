package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wfunc/herdparty/arena"
	"github.com/wfunc/herdparty/motion"
	"github.com/wfunc/herdparty/pit"
	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/room"
	"github.com/wfunc/herdparty/state"
)

const EnvPrefix = "HERD"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Rules   RulesConfig   `mapstructure:"rules"`
	Motion  MotionConfig  `mapstructure:"motion"`
	Pit     PitConfig     `mapstructure:"pit"`
	Spawner SpawnerConfig `mapstructure:"spawner"`
	Player  PlayerConfig  `mapstructure:"player"`
	Arena   ArenaConfig   `mapstructure:"arena"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Journal JournalConfig `mapstructure:"journal"`
}

type ServerConfig struct {
	HTTPAddress       string        `mapstructure:"http_address"`
	RPCAddress        string        `mapstructure:"rpc_address"`
	GRPCAddress       string        `mapstructure:"grpc_address"`
	Role              string        `mapstructure:"role"`
	TickRate          int           `mapstructure:"tick_rate"`
	SnapshotRate      int           `mapstructure:"snapshot_rate"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

type RulesConfig struct {
	WinPoints    int           `mapstructure:"win_points"`
	RoundSeconds int           `mapstructure:"round_seconds"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

type MotionConfig struct {
	BaseSpeed                 float64       `mapstructure:"base_speed"`
	SlowMultiplier            float64       `mapstructure:"slow_multiplier"`
	InfluenceRadius           float64       `mapstructure:"influence_radius"`
	AlignAngleDegrees         float64       `mapstructure:"align_angle_degrees"`
	WanderRadius              float64       `mapstructure:"wander_radius"`
	WanderInterval            time.Duration `mapstructure:"wander_interval"`
	ImpulseStrength           float64       `mapstructure:"impulse_strength"`
	ImpulseCooldown           time.Duration `mapstructure:"impulse_cooldown"`
	PhysicsReenableCooldown   time.Duration `mapstructure:"physics_reenable_cooldown"`
	ReenableVelocityThreshold float64       `mapstructure:"reenable_velocity_threshold"`
	StuckRepathTime           time.Duration `mapstructure:"stuck_repath_time"`
	MinMoveDistance           float64       `mapstructure:"min_move_distance"`
	AssistWindow              time.Duration `mapstructure:"assist_window"`
	RequirePlayerRoot         bool          `mapstructure:"require_player_root"`
}

type PitConfig struct {
	PointsPerAnimal int           `mapstructure:"points_per_animal"`
	RespawnDelay    time.Duration `mapstructure:"respawn_delay"`
	PenaltyCooldown time.Duration `mapstructure:"penalty_cooldown"`
}

type SpawnerConfig struct {
	TargetAlive int   `mapstructure:"target_alive"`
	Seed        int64 `mapstructure:"seed"`
}

type PlayerConfig struct {
	WalkSpeed  float64 `mapstructure:"walk_speed"`
	RunSpeed   float64 `mapstructure:"run_speed"`
	JumpHeight float64 `mapstructure:"jump_height"`
	Gravity    float64 `mapstructure:"gravity"`
}

type ArenaConfig struct {
	// File is an optional YAML layout; empty uses the built-in field.
	File string `mapstructure:"file"`
}

type ArchiveConfig struct {
	// Driver is one of "", "gorm", "postgres", "sqlite".
	Driver       string        `mapstructure:"driver"`
	DSN          string        `mapstructure:"dsn"`
	QueueSize    int           `mapstructure:"queue_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type JournalConfig struct {
	// Dir enables the event journal when set.
	Dir           string `mapstructure:"dir"`
	SkipSnapshots bool   `mapstructure:"skip_snapshots"`
}

func setDefaults(v *viper.Viper) {
	m := motion.DefaultConfig()
	p := pit.DefaultConfig()
	a := arena.DefaultConfig()
	r := state.DefaultConfig()

	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.grpc_address", ":8082")
	v.SetDefault("server.role", replicated.RoleServer.String())
	v.SetDefault("server.tick_rate", room.DefaultTickRate)
	v.SetDefault("server.snapshot_rate", room.DefaultSnapshotRate)
	v.SetDefault("server.heartbeat_interval", 30*time.Second)

	v.SetDefault("rules.win_points", r.WinPoints)
	v.SetDefault("rules.round_seconds", int(r.RoundDuration.Seconds()))
	v.SetDefault("rules.tick_interval", r.TickInterval)

	v.SetDefault("motion.base_speed", m.BaseSpeed)
	v.SetDefault("motion.slow_multiplier", m.SlowMultiplier)
	v.SetDefault("motion.influence_radius", m.InfluenceRadius)
	v.SetDefault("motion.align_angle_degrees", m.AlignAngleDegrees)
	v.SetDefault("motion.wander_radius", m.WanderRadius)
	v.SetDefault("motion.wander_interval", m.WanderInterval)
	v.SetDefault("motion.impulse_strength", m.ImpulseStrength)
	v.SetDefault("motion.impulse_cooldown", m.ImpulseCooldown)
	v.SetDefault("motion.physics_reenable_cooldown", m.PhysicsReenableCooldown)
	v.SetDefault("motion.reenable_velocity_threshold", m.ReenableVelocityThreshold)
	v.SetDefault("motion.stuck_repath_time", m.StuckRepathTime)
	v.SetDefault("motion.min_move_distance", m.MinMoveDistance)
	v.SetDefault("motion.assist_window", m.AssistWindow)
	v.SetDefault("motion.require_player_root", m.RequirePlayerRoot)

	v.SetDefault("pit.points_per_animal", p.PointsPerAnimal)
	v.SetDefault("pit.respawn_delay", p.RespawnDelay)
	v.SetDefault("pit.penalty_cooldown", p.PenaltyCooldown)

	v.SetDefault("spawner.target_alive", room.DefaultConfig().TargetAlive)
	v.SetDefault("spawner.seed", 0)

	v.SetDefault("player.walk_speed", a.WalkSpeed)
	v.SetDefault("player.run_speed", a.RunSpeed)
	v.SetDefault("player.jump_height", a.JumpHeight)
	v.SetDefault("player.gravity", a.Gravity)

	v.SetDefault("arena.file", "")

	v.SetDefault("archive.driver", "")
	v.SetDefault("archive.dsn", "")
	v.SetDefault("archive.queue_size", 64)
	v.SetDefault("archive.write_timeout", 5*time.Second)

	v.SetDefault("journal.dir", "")
	v.SetDefault("journal.skip_snapshots", true)
}

// LoadConfig reads config.yaml from path. Every key can be overridden from the environment,
// e.g. HERD_RULES_WIN_POINTS=50. A missing file leaves the defaults in place.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Layout loads the configured arena file, or returns the built-in layout.
func (c *Config) Layout() (arena.Layout, error) {
	if c.Arena.File == "" {
		return arena.DefaultLayout(), nil
	}
	return arena.LoadLayout(c.Arena.File)
}

// Room maps the configuration onto the room's tuning.
func (c *Config) Room(layout arena.Layout) room.Config {
	rc := room.DefaultConfig()
	rc.TickRate = c.Server.TickRate
	rc.SnapshotRate = c.Server.SnapshotRate
	rc.Role = replicated.ParseRole(c.Server.Role)
	rc.TargetAlive = c.Spawner.TargetAlive
	rc.Seed = c.Spawner.Seed
	if rc.Seed == 0 {
		rc.Seed = time.Now().UnixNano()
	}
	rc.Layout = layout

	rc.Arena.WalkSpeed = c.Player.WalkSpeed
	rc.Arena.RunSpeed = c.Player.RunSpeed
	rc.Arena.JumpHeight = c.Player.JumpHeight
	rc.Arena.Gravity = c.Player.Gravity

	rc.Motion = motion.Config{
		BaseSpeed:                 c.Motion.BaseSpeed,
		SlowMultiplier:            c.Motion.SlowMultiplier,
		InfluenceRadius:           c.Motion.InfluenceRadius,
		AlignAngleDegrees:         c.Motion.AlignAngleDegrees,
		WanderRadius:              c.Motion.WanderRadius,
		WanderInterval:            c.Motion.WanderInterval,
		ImpulseStrength:           c.Motion.ImpulseStrength,
		ImpulseCooldown:           c.Motion.ImpulseCooldown,
		PhysicsReenableCooldown:   c.Motion.PhysicsReenableCooldown,
		ReenableVelocityThreshold: c.Motion.ReenableVelocityThreshold,
		StuckRepathTime:           c.Motion.StuckRepathTime,
		MinMoveDistance:           c.Motion.MinMoveDistance,
		AssistWindow:              c.Motion.AssistWindow,
		RequirePlayerRoot:         c.Motion.RequirePlayerRoot,
	}
	rc.Pit = pit.Config{
		PointsPerAnimal: c.Pit.PointsPerAnimal,
		RespawnDelay:    c.Pit.RespawnDelay,
		PenaltyCooldown: c.Pit.PenaltyCooldown,
	}
	rc.Rules.WinPoints = c.Rules.WinPoints
	rc.Rules.RoundDuration = time.Duration(c.Rules.RoundSeconds) * time.Second
	rc.Rules.TickInterval = c.Rules.TickInterval
	return rc
}

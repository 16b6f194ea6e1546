package types

// EngineConfig 引擎配置
type EngineConfig struct {
	// MaxRequests 请求池容量，即全局同时存活的最大请求数
	MaxRequests int `yaml:"max_requests" json:"max_requests" env:"MAX_REQUESTS"`

	// NumChannels IO 通道数量，超过 MaxChannels 时被钳制
	NumChannels int `yaml:"num_channels" json:"num_channels" env:"NUM_CHANNELS"`

	// NumLanes 每个通道的泳道数量，即单通道同时在途的最大请求数
	NumLanes int `yaml:"num_lanes" json:"num_lanes" env:"NUM_LANES"`
}

// DefaultEngineConfig 返回默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxRequests: 128,
		NumChannels: 1,
		NumLanes:    1,
	}
}

// Normalize 用默认值替换零值字段，并将 NumChannels 钳制到 MaxChannels。
// 返回是否发生了钳制。
func (c *EngineConfig) Normalize() bool {
	def := DefaultEngineConfig()
	if c.MaxRequests <= 0 {
		c.MaxRequests = def.MaxRequests
	}
	if c.NumChannels <= 0 {
		c.NumChannels = def.NumChannels
	}
	if c.NumLanes <= 0 {
		c.NumLanes = def.NumLanes
	}
	if c.NumChannels > MaxChannels {
		c.NumChannels = MaxChannels
		return true
	}
	return false
}

// Validate 校验配置合法性
func (c EngineConfig) Validate() error {
	if c.MaxRequests <= 0 || c.MaxRequests >= 1<<16-1 {
		return NewError(ErrInvalidRequest, "max_requests must be in [1, 65534]")
	}
	if c.NumChannels <= 0 || c.NumChannels > MaxChannels {
		return NewError(ErrInvalidRequest, "num_channels out of range")
	}
	if c.NumLanes <= 0 {
		return NewError(ErrInvalidRequest, "num_lanes must be positive")
	}
	return nil
}

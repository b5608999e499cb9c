package config

import (
	"errors"
	"fmt"
	"math"

	"gopkg.in/yaml.v2"
)

const (
	defaultInterval      = 1.0 // 默认每步1秒
	defaultBatchSize     = 100 // 默认每100条记录写入一次
	defaultSnapshotWidth = 100 // 快照默认显示前100个元胞
)

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("invalid config")

// ModelParams 元胞自动机模型参数
// 功能：模型构造时使用的只读参数，与全局状态无关，可同时创建多个独立的模型实例
type ModelParams struct {
	RoadLength          int     // 道路长度L
	MaxSpeed            int     // 最大速度V_MAX
	SlowProbability     float64 // 随机减速概率P_SLOW
	EntryProbability    float64 // 入口进车概率P_ENTER
	InitialCount        int     // 初始车辆数
	InitialSpeedMin     int     // 初始速度下限V_MIN0
	InitialSpeedMax     int     // 初始速度上限V_MAX0
	CongestionThreshold int     // 拥堵阈值K
}

// Validate 校验模型参数
// 功能：检查所有长度、速度范围、概率字段，不合法时返回包装了ErrInvalidConfig的错误
// 说明：初始车辆数超过道路长度不视为错误，构造时截断
func (p ModelParams) Validate() error {
	switch {
	case p.RoadLength <= 0:
		return fmt.Errorf("%w: road length must be positive, got %d", ErrInvalidConfig, p.RoadLength)
	case p.MaxSpeed <= 0:
		return fmt.Errorf("%w: max speed must be positive, got %d", ErrInvalidConfig, p.MaxSpeed)
	case !isProbability(p.SlowProbability):
		return fmt.Errorf("%w: slow probability must be in [0,1], got %v", ErrInvalidConfig, p.SlowProbability)
	case !isProbability(p.EntryProbability):
		return fmt.Errorf("%w: entry probability must be in [0,1], got %v", ErrInvalidConfig, p.EntryProbability)
	case p.InitialCount < 0:
		return fmt.Errorf("%w: initial vehicle count must not be negative, got %d", ErrInvalidConfig, p.InitialCount)
	case p.InitialSpeedMin < 0:
		return fmt.Errorf("%w: initial speed min must not be negative, got %d", ErrInvalidConfig, p.InitialSpeedMin)
	case p.InitialSpeedMin > p.InitialSpeedMax:
		return fmt.Errorf("%w: initial speed range [%d, %d] is empty", ErrInvalidConfig, p.InitialSpeedMin, p.InitialSpeedMax)
	case p.InitialSpeedMax > p.MaxSpeed:
		return fmt.Errorf("%w: initial speed max %d exceeds max speed %d", ErrInvalidConfig, p.InitialSpeedMax, p.MaxSpeed)
	case p.CongestionThreshold <= 0:
		return fmt.Errorf("%w: congestion threshold must be positive, got %d", ErrInvalidConfig, p.CongestionThreshold)
	}
	return nil
}

func isProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息，包含校验后的模型参数与补全默认值的控制配置
type RuntimeConfig struct {
	All   Config      // 全部配置
	C     Control     // 全局控制配置
	Model ModelParams // 模型参数
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象，进行配置校验并补全默认值
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针，校验失败则返回错误
// 算法说明：
// 1. 从YAML结构中提取模型参数并校验
// 2. 校验控制参数：总步数与快照间隔不能为负
// 3. 设置默认值：未指定步长则为1秒，未指定批量大小则为100
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	params := ModelParams{
		RoadLength:          config.Road.Length,
		MaxSpeed:            config.Vehicle.MaxSpeed,
		SlowProbability:     config.Vehicle.SlowProbability,
		EntryProbability:    config.Inlet.EntryProbability,
		InitialCount:        config.Vehicle.InitialCount,
		InitialSpeedMin:     config.Vehicle.InitialSpeedMin,
		InitialSpeedMax:     config.Vehicle.InitialSpeedMax,
		CongestionThreshold: config.Congestion.Threshold,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if config.Control.Step.Total < 0 {
		return nil, fmt.Errorf("%w: total steps must not be negative, got %d", ErrInvalidConfig, config.Control.Step.Total)
	}
	if config.Control.SnapshotInterval < 0 {
		return nil, fmt.Errorf("%w: snapshot interval must not be negative, got %d", ErrInvalidConfig, config.Control.SnapshotInterval)
	}
	if config.Control.Step.Interval < 0 {
		return nil, fmt.Errorf("%w: step interval must not be negative, got %v", ErrInvalidConfig, config.Control.Step.Interval)
	}
	if config.Control.Step.Interval == 0 {
		config.Control.Step.Interval = defaultInterval
	}
	if config.Output.URI != "" && (config.Output.Records.DB == "" || config.Output.Records.Col == "") {
		return nil, fmt.Errorf("%w: output records db and col are required when output uri is set", ErrInvalidConfig)
	}
	if config.Control.SnapshotWidth == 0 {
		config.Control.SnapshotWidth = defaultSnapshotWidth
	}
	if config.Output.BatchSize <= 0 {
		config.Output.BatchSize = defaultBatchSize
	}

	return &RuntimeConfig{
		All:   config,
		C:     config.Control,
		Model: params,
	}, nil
}

// Parse 解析YAML配置
// 功能：严格模式解析，未知字段视为错误
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("config file load err: %w", err)
	}
	return c, nil
}

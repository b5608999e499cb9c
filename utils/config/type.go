package config

// OutputPath 指定输出数据去向的配置（MongoDB）
// 功能：定义统计记录写入的数据库与集合
type OutputPath struct {
	DB  string `yaml:"db"`  // 数据库名
	Col string `yaml:"col"` // 集合名
}

// GetDb 获取数据库名
func (p OutputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p OutputPath) GetColl() string {
	return p.Col
}

// Output 模拟器输出配置
// 功能：配置每步统计记录的输出，URI为空则不输出
type Output struct {
	URI       string     `yaml:"uri,omitempty"`        // MongoDB连接字符串
	Records   OutputPath `yaml:"records,omitempty"`    // 统计记录
	BatchSize int        `yaml:"batch_size,omitempty"` // 批量写入条数，为0则取默认值
}

// Road 道路配置
// 功能：定义元胞道路的长度与可选的初始布局
// 说明：布局使用与快照相同的文本格式，'.'为空元胞，数字为车辆速度
type Road struct {
	Length int    `yaml:"length"`           // 元胞数
	Layout string `yaml:"layout,omitempty"` // 初始布局，非空时替代随机初始化
}

// Vehicle 车辆配置
type Vehicle struct {
	MaxSpeed        int     `yaml:"max_speed"`         // 最大速度（元胞/步）
	SlowProbability float64 `yaml:"slow_probability"`  // 随机减速概率
	InitialCount    int     `yaml:"initial_count"`     // 初始车辆数，超过道路长度时截断
	InitialSpeedMin int     `yaml:"initial_speed_min"` // 初始速度下限
	InitialSpeedMax int     `yaml:"initial_speed_max"` // 初始速度上限
}

// Inlet 入口配置
type Inlet struct {
	EntryProbability float64 `yaml:"entry_probability"` // 每步新车进入概率
}

// Congestion 拥堵检测配置
type Congestion struct {
	Threshold int `yaml:"threshold"` // 连续慢车数量阈值
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真时间控制参数
// 说明：控制仿真的时间范围、步长和精度
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// Control 模拟器控制配置
// 功能：定义仿真系统的核心控制参数
// 说明：包含时间控制、随机种子、快照输出等配置
type Control struct {
	Step             ControlStep `yaml:"step"`
	Seed             uint64      `yaml:"seed,omitempty"`              // 随机数种子
	SnapshotInterval int32       `yaml:"snapshot_interval,omitempty"` // 快照日志间隔步数，为0则只输出最后一步
	SnapshotWidth    int         `yaml:"snapshot_width,omitempty"`    // 快照显示的元胞数，为0则取默认值，为负则显示全部
}

// Config YAML配置文件的根结构
// 功能：定义整个仿真系统的配置结构
// 说明：包含道路、车辆、入口、拥堵检测、控制、输出等所有配置项
type Config struct {
	Road       Road       `yaml:"road"`
	Vehicle    Vehicle    `yaml:"vehicle"`
	Inlet      Inlet      `yaml:"inlet"`
	Congestion Congestion `yaml:"congestion"`
	Control    Control    `yaml:"control"`          // 模拟过程控制
	Output     Output     `yaml:"output,omitempty"` // 输出
}

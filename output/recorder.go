package output

import (
	"context"
	"fmt"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity/traffic"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/utils/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// inserter 批量写入接口，由*mongo.Collection实现
type inserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// Record 每步统计记录
type Record struct {
	Step            int32   `bson:"step"`
	T               float64 `bson:"t"`
	Occupied        int     `bson:"occupied"`
	Density         float64 `bson:"density"`
	AverageSpeed    float64 `bson:"average_speed"`
	FlowRate        float64 `bson:"flow_rate"`
	CongestionCount int     `bson:"congestion_count"`
	Entered         int     `bson:"entered"`
	Exited          int     `bson:"exited"`
}

// NewRecord 根据时钟与模型统计结果构造记录
func NewRecord(step int32, t float64, s traffic.Statistics) Record {
	return Record{
		Step:            step,
		T:               t,
		Occupied:        s.Occupied,
		Density:         s.Density,
		AverageSpeed:    s.AverageSpeed,
		FlowRate:        s.FlowRate,
		CongestionCount: s.CongestionCount,
		Entered:         s.Entered,
		Exited:          s.Exited,
	}
}

// Recorder 统计记录输出器
// 功能：缓存每步记录，达到批量大小时写入MongoDB
// 说明：只写不读，模拟状态不会被重新加载
type Recorder struct {
	client    *mongo.Client
	coll      inserter
	batchSize int
	buffer    []interface{}
}

// New 创建连接到MongoDB的输出器
// 参数：c-输出配置，URI必须非空
func New(c config.Output) *Recorder {
	client := mongoutil.NewClient(c.URI)
	coll := client.Database(c.Records.GetDb()).Collection(c.Records.GetColl())
	log.Infof("record statistics to %s.%s", c.Records.DB, c.Records.Col)
	r := newRecorder(coll, c.BatchSize)
	r.client = client
	return r
}

func newRecorder(coll inserter, batchSize int) *Recorder {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Recorder{
		coll:      coll,
		batchSize: batchSize,
		buffer:    make([]interface{}, 0, batchSize),
	}
}

// Add 添加一条记录，缓存满时写入
func (r *Recorder) Add(ctx context.Context, rec Record) error {
	r.buffer = append(r.buffer, rec)
	if len(r.buffer) >= r.batchSize {
		return r.Flush(ctx)
	}
	return nil
}

// Flush 写入所有缓存的记录
// 说明：写入失败时丢弃本批记录并返回错误，避免缓存无限增长
func (r *Recorder) Flush(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}
	docs := r.buffer
	r.buffer = make([]interface{}, 0, r.batchSize)
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert %d records: %w", len(docs), err)
	}
	log.Debugf("flush %d records", len(docs))
	return nil
}

// Close 写入剩余记录并断开连接
func (r *Recorder) Close(ctx context.Context) error {
	err := r.Flush(ctx)
	if r.client != nil {
		if dErr := r.client.Disconnect(ctx); dErr != nil && err == nil {
			err = fmt.Errorf("failed to disconnect: %w", dErr)
		}
	}
	return err
}

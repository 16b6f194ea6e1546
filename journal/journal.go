// Package journal persists terminal fetch outcomes to a relational
// database through GORM.
package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/fetchflow/types"
)

// =============================================================================
// 🗄️ 抓取日志
// =============================================================================
// 每个到达终态的请求写入一行记录，用于下载历史查询与排障。通过
// Callback 包装器挂接到引擎：包装后的回调先透传给用户回调，在观察到
// Finished 时落库。
// =============================================================================

// Outcome 请求终态
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Record 一次抓取的终态记录
type Record struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Path         string    `gorm:"size:1024;index" json:"path"`
	Channel      int       `json:"channel"`
	Lane         int       `json:"lane"`
	Outcome      Outcome   `gorm:"size:16;index" json:"outcome"`
	ErrorCode    string    `gorm:"size:32" json:"error_code,omitempty"`
	ContentSize  int64     `json:"content_size"`
	BytesFetched int64     `json:"bytes_fetched"`
	Chunks       int       `json:"chunks"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `gorm:"index" json:"finished_at"`
}

// TableName 指定表名
func (Record) TableName() string {
	return "fetch_journal"
}

// Journal 抓取日志
type Journal struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New 创建日志并自动迁移表结构
func New(db *gorm.DB, logger *zap.Logger) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate fetch journal: %w", err)
	}
	return &Journal{
		db:     db,
		logger: logger.With(zap.String("component", "journal")),
	}, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// tracker 单个请求的进度累计，由包装回调持有
type tracker struct {
	startedAt    time.Time
	bytesFetched int64
	chunks       int
}

// Callback 包装用户回调：透传所有响应，并在请求到达终态时写入一条
// 日志记录。每次 Send 都必须使用一个新的包装回调。
func (j *Journal) Callback(next types.ResponseCallback) types.ResponseCallback {
	tr := &tracker{startedAt: time.Now()}
	return func(resp *types.Response) {
		if resp.Fetched {
			tr.bytesFetched += resp.FetchedSize
			tr.chunks++
		}
		next(resp)
		if resp.Finished {
			j.record(tr, resp)
		}
	}
}

func (j *Journal) record(tr *tracker, resp *types.Response) {
	outcome := OutcomeSuccess
	switch {
	case resp.Cancelled:
		outcome = OutcomeCancelled
	case resp.Failed:
		outcome = OutcomeFailed
	}
	rec := Record{
		ID:           uuid.NewString(),
		Path:         resp.Path,
		Channel:      resp.Channel,
		Lane:         resp.Lane,
		Outcome:      outcome,
		ErrorCode:    string(resp.ErrorCode),
		ContentSize:  resp.ContentSize,
		BytesFetched: tr.bytesFetched,
		Chunks:       tr.chunks,
		StartedAt:    tr.startedAt,
		FinishedAt:   time.Now(),
	}
	if err := j.db.Create(&rec).Error; err != nil {
		// 日志落库失败不影响抓取本身
		j.logger.Error("journal write failed", zap.String("path", resp.Path), zap.Error(err))
		return
	}
	j.logger.Debug("journal record written",
		zap.String("path", rec.Path),
		zap.String("outcome", string(outcome)),
		zap.Int64("bytes", rec.BytesFetched),
	)
}

// =============================================================================
// 🔍 查询
// =============================================================================

// Recent 返回最近 n 条记录，按完成时间倒序
func (j *Journal) Recent(n int) ([]Record, error) {
	var records []Record
	err := j.db.Order("finished_at DESC").Limit(n).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query recent records: %w", err)
	}
	return records, nil
}

// CountByOutcome 按终态统计记录数
func (j *Journal) CountByOutcome() (map[Outcome]int64, error) {
	type row struct {
		Outcome Outcome
		Count   int64
	}
	var rows []row
	err := j.db.Model(&Record{}).
		Select("outcome, count(*) as count").
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count by outcome: %w", err)
	}
	result := make(map[Outcome]int64, len(rows))
	for _, r := range rows {
		result[r.Outcome] = r.Count
	}
	return result, nil
}

// ByPath 返回指定路径的全部记录，按完成时间倒序
func (j *Journal) ByPath(path string) ([]Record, error) {
	var records []Record
	err := j.db.Where("path = ?", path).Order("finished_at DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query records by path: %w", err)
	}
	return records, nil
}

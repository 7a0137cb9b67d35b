package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Employer 雇主主表，API Key命中的请求归属到这里
type Employer struct {
	EmployerID   string    `gorm:"type:char(36);primaryKey"`
	Name         string    `gorm:"type:varchar(255)"`
	ContactEmail string    `gorm:"type:varchar(255)"`
	CreatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Employer) TableName() string {
	return "employers"
}

// AnalysisBatch 一次分析请求的聚合记录，单份分析也会生成只有一条记录的批次
type AnalysisBatch struct {
	BatchID         string    `gorm:"type:char(36);primaryKey"`
	EmployerID      *string   `gorm:"type:char(36);index:idx_ab_employer_id"` // 匿名请求为NULL
	Pool            string    `gorm:"type:varchar(50)"`
	CandidatesCount int       `gorm:"not null"`
	JDExcerpt       string    `gorm:"type:text"` // JD文本的截断副本，仅用于回溯
	CreatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_ab_created_at"`
}

func (AnalysisBatch) TableName() string {
	return "analysis_batches"
}

// AnalysisRecord 单个候选人的分析结果记录
type AnalysisRecord struct {
	RecordID          string         `gorm:"type:char(36);primaryKey"`
	BatchID           string         `gorm:"type:char(36);not null;index:idx_ar_batch_id"`
	EmployerID        *string        `gorm:"type:char(36);index:idx_ar_employer_id"`
	Filename          string         `gorm:"type:varchar(255)"`
	MatchScore        int            `gorm:"not null"`
	MissingSkillsJSON datatypes.JSON `gorm:"type:json"`
	ProfileSummary    string         `gorm:"type:text"`
	Position          int            `gorm:"default:0"`
	ErrorMessage      string         `gorm:"type:text"` // 非空表示该候选人处理失败
	CreatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (AnalysisRecord) TableName() string {
	return "analysis_records"
}

// StringsToJSON 把字符串切片转换为JSON列的值，失败时返回空数组
func StringsToJSON(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

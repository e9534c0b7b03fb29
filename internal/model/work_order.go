package model

import "time"

// WorkOrder is a maintenance order imported from the secondary
// workbook sheet. Independent of UsageLog; append-only.
type WorkOrder struct {
	ID                int64  `gorm:"autoIncrement;primaryKey" json:"id"`
	Tag               string `gorm:"index;size:64;not null" json:"tag"`
	OrderNumber       string `gorm:"size:64" json:"orderNumber"`
	ScheduledDate     string `gorm:"size:32" json:"scheduledDate"`
	MaintenanceType   string `gorm:"size:128" json:"maintenanceType"`
	Description       string `json:"description"`
	ExecutionNotes    string `json:"executionNotes"`
	ResponsibleParty  string `gorm:"size:128" json:"responsibleParty"`
	ReschedulingNotes string `json:"reschedulingNotes"`
	Status            string `gorm:"size:32" json:"status"`
	CreatedAt         time.Time
}

package model

import "time"

// ReportType selects which listings a report covers.
type ReportType string

const (
	ReportOpen   ReportType = "open"   // status = active
	ReportClosed ReportType = "closed" // status != active
)

// Report describes a freshly generated CSV export.
type Report struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Count    int    `json:"count"`
}

// ReportFile is an export found on disk.
type ReportFile struct {
	Filename  string     `json:"filename"`
	Type      ReportType `json:"type"`
	Size      int64      `json:"size"`
	SizeHuman string     `json:"sizeHuman"`
	CreatedAt time.Time  `json:"createdAt"`
}

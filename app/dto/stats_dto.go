package dto

// StatsRequest selects a date range (inclusive, YYYY-MM-DD) and optional branch
type StatsRequest struct {
	DateFrom string `json:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `json:"date_to" validate:"omitempty,datetime=2006-01-02"`
	BranchID *int64 `json:"branch_id,omitempty"`
}

// HourlyBucket is one (date, hour, branch) counter row
type HourlyBucket struct {
	Date     string `json:"date"`
	Hour     int    `json:"hour"`
	BranchID int64  `json:"branch_id"`
	Sent     int64  `json:"sent"`
	Failed   int64  `json:"failed"`
}

// DailyBucket folds the hourly rows of one date together
type DailyBucket struct {
	Date   string `json:"date"`
	Sent   int64  `json:"sent"`
	Failed int64  `json:"failed"`
}

// HourlyStatsResponse lists hourly buckets plus range totals
type HourlyStatsResponse struct {
	Buckets     []HourlyBucket `json:"buckets"`
	TotalSent   int64          `json:"total_sent"`
	TotalFailed int64          `json:"total_failed"`
}

// DailyStatsResponse lists daily buckets plus range totals
type DailyStatsResponse struct {
	Buckets     []DailyBucket `json:"buckets"`
	TotalSent   int64         `json:"total_sent"`
	TotalFailed int64         `json:"total_failed"`
}

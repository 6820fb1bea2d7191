package model

import "time"

// Record is one persisted audit event.
type Record struct {
	Actor      string    `json:"actor" db:"actor"`
	Action     string    `json:"action" db:"action"`
	TargetType string    `json:"targetType" db:"target_type"`
	TargetUID  string    `json:"targetUid" db:"target_uid"`
	Details    string    `json:"details" db:"details"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}

type Filter struct {
	Actor      string
	Action     string
	TargetType string
	TargetUID  string
	From       time.Time
	To         time.Time
	Page       int
	Size       int
}

type ListRecords struct {
	Data []Record `json:"data"`
}

// Package domain contains core domain types for the warehouse assistant.
package domain

import (
	"time"
)

// IssueStatus is the lifecycle status of an escalation issue.
type IssueStatus string

// IssueStatusOpen is the only status an issue can have; nothing closes issues.
const IssueStatusOpen IssueStatus = "open"

// Issue records a "no data found" escalation.
type Issue struct {
	ID         string      `json:"id"`
	Question   string      `json:"question"`
	SQL        string      `json:"sql"`
	TableLabel string      `json:"table"`
	Details    string      `json:"details"`
	Status     IssueStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

// IsOpen returns true if the issue is still open.
func (i *Issue) IsOpen() bool {
	return i.Status == IssueStatusOpen
}

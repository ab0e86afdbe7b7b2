package domain

import (
	"fmt"
	"strings"
)

// TargetType identifies what a bid is placed against.
type TargetType string

const (
	TargetServiceRequest TargetType = "service_request"
	TargetProject        TargetType = "project"
)

// ParseTargetType accepts the canonical names plus the short URL forms.
func ParseTargetType(s string) (TargetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "service_request", "service-request", "service-requests", "request", "requests":
		return TargetServiceRequest, nil
	case "project", "projects":
		return TargetProject, nil
	}
	return "", fmt.Errorf("%w: unknown target type %q", ErrValidation, s)
}

// Key is the lock and event key of a target.
func (t TargetType) Key(id int64) string {
	return fmt.Sprintf("%s:%d", t, id)
}

// Category is the notification category for announcements about the target.
func (t TargetType) Category() Category {
	if t == TargetProject {
		return CategoryProject
	}
	return CategoryRequest
}

func (t TargetType) Label() string {
	if t == TargetProject {
		return "project"
	}
	return "service request"
}

type TargetStatus string

const (
	StatusDraft      TargetStatus = "draft"
	StatusPublished  TargetStatus = "published"
	StatusBidding    TargetStatus = "bidding"
	StatusAssigned   TargetStatus = "assigned"
	StatusInProgress TargetStatus = "in_progress"
	StatusCompleted  TargetStatus = "completed"
	StatusCancelled  TargetStatus = "cancelled"
)

// Target is a service request or a project.
type Target struct {
	ID         int64        `json:"id"`
	Type       TargetType   `json:"type"`
	OwnerID    int64        `json:"ownerId"`
	Title      string       `json:"title"`
	Status     TargetStatus `json:"status"`
	AssigneeID *int64       `json:"assigneeId,omitempty"`
}

// OpenForBidding reports whether new bids may be placed.
func (t *Target) OpenForBidding() bool {
	switch t.Type {
	case TargetServiceRequest:
		return t.Status == StatusPublished
	case TargetProject:
		return t.Status == StatusPublished || t.Status == StatusBidding
	}
	return false
}

// AwardedStatus is the status a target moves to once a bid is accepted.
func (t TargetType) AwardedStatus() TargetStatus {
	if t == TargetProject {
		return StatusInProgress
	}
	return StatusAssigned
}

// TargetPatch updates status and, when set, the assignee.
type TargetPatch struct {
	Status     TargetStatus
	AssigneeID *int64
}

// TeamMember is the membership of a user on a target.
type TeamMember struct {
	TargetType TargetType `json:"targetType"`
	TargetID   int64      `json:"targetId"`
	UserID     int64      `json:"userId"`
	Role       string     `json:"role"`
}

const TeamRoleAssignee = "assignee"

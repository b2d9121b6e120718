package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaintenanceType classifies the kind of work a client asks for.
type MaintenanceType string

const (
	MaintenanceTypeEmergency  MaintenanceType = "emergency"
	MaintenanceTypeRoutine    MaintenanceType = "routine"
	MaintenanceTypeRepair     MaintenanceType = "repair"
	MaintenanceTypeRenovation MaintenanceType = "renovation"
	MaintenanceTypeInspection MaintenanceType = "inspection"
)

// Valid reports whether t is one of the known maintenance types.
func (t MaintenanceType) Valid() bool {
	switch t {
	case MaintenanceTypeEmergency, MaintenanceTypeRoutine, MaintenanceTypeRepair,
		MaintenanceTypeRenovation, MaintenanceTypeInspection:
		return true
	}
	return false
}

// Category is the trade a request belongs to.
type Category string

const (
	CategoryStructural Category = "structural"
	CategoryElectrical Category = "electrical"
	CategoryPlumbing   Category = "plumbing"
	CategoryHVAC       Category = "hvac"
	CategoryFinishing  Category = "finishing"
	CategoryOther      Category = "other"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryStructural, CategoryElectrical, CategoryPlumbing,
		CategoryHVAC, CategoryFinishing, CategoryOther:
		return true
	}
	return false
}

// Priority drives the response-time expectation shown to the client.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TimeSlot is the client's preferred visit window.
type TimeSlot string

const (
	TimeSlotMorning   TimeSlot = "morning"
	TimeSlotAfternoon TimeSlot = "afternoon"
	TimeSlotEvening   TimeSlot = "evening"
	TimeSlotAnytime   TimeSlot = "anytime"
)

// Valid reports whether s is one of the known time slots.
func (s TimeSlot) Valid() bool {
	switch s {
	case TimeSlotMorning, TimeSlotAfternoon, TimeSlotEvening, TimeSlotAnytime:
		return true
	}
	return false
}

// RequestStatus describes the life-cycle state of a maintenance request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusConfirmed  RequestStatus = "confirmed"
	StatusAssigned   RequestStatus = "assigned"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

// Valid reports whether s is one of the lifecycle statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusAssigned,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// MaintenanceRequest is one client-submitted service ticket.
type MaintenanceRequest struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ReferenceNumber    string          `gorm:"uniqueIndex;size:32;not null" json:"reference_number"`
	ClientName         string          `gorm:"not null" json:"client_name"`
	ClientPhone        string          `gorm:"index;not null" json:"client_phone"`
	ClientEmail        string          `gorm:"not null" json:"client_email"`
	ClientAddress      string          `gorm:"not null" json:"client_address"`
	MaintenanceType    MaintenanceType `gorm:"size:20;not null" json:"maintenance_type"`
	Category           Category        `gorm:"size:20;not null" json:"category"`
	Priority           Priority        `gorm:"size:10;index;not null" json:"priority"`
	Description        string          `gorm:"type:text;not null" json:"description"`
	PreferredDate      string          `gorm:"size:10" json:"preferred_date"`
	PreferredTime      TimeSlot        `gorm:"size:10" json:"preferred_time"`
	AccessNotes        string          `gorm:"type:text" json:"access_notes"`
	ContactPerson      string          `json:"contact_person"`
	ContactPhone       string          `json:"contact_phone"`
	Status             RequestStatus   `gorm:"size:20;index;not null" json:"status"`
	AssignedTechnician *string         `json:"assigned_technician"`
	EstimatedCost      *float64        `json:"estimated_cost"`
	ActualCost         *float64        `json:"actual_cost"`
	AdminNotes         string          `gorm:"type:text" json:"admin_notes"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	History []StatusHistoryEntry `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"maintenance_status_history,omitempty"`
	Images  []MaintenanceImage   `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"maintenance_images,omitempty"`
}

// BeforeCreate is a GORM hook that populates the primary key and the initial status.
func (r *MaintenanceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	return nil
}

// CurrentStatus resolves the status implied by the history chain. Without
// loaded history it falls back to the status column, and to pending when
// that is empty too.
func (r *MaintenanceRequest) CurrentStatus() RequestStatus {
	if len(r.History) == 0 {
		if r.Status == "" {
			return StatusPending
		}
		return r.Status
	}
	return r.History[len(r.History)-1].NewStatus
}

// StatusHistoryEntry is an immutable audit record of one status transition.
type StatusHistoryEntry struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID uuid.UUID     `gorm:"type:uuid;index;not null" json:"request_id"`
	OldStatus RequestStatus `gorm:"size:20" json:"old_status"`
	NewStatus RequestStatus `gorm:"size:20;not null" json:"new_status"`
	ChangedBy string        `json:"changed_by"`
	Notes     string        `gorm:"type:text" json:"notes"`
	CreatedAt time.Time     `gorm:"index" json:"created_at"`
}

func (StatusHistoryEntry) TableName() string { return "maintenance_status_history" }

func (e *StatusHistoryEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// MaintenanceImage is a photo attached to a request after it was created.
type MaintenanceImage struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID   uuid.UUID `gorm:"type:uuid;index;not null" json:"request_id"`
	ImageURL    string    `gorm:"type:text;not null" json:"image_url"`
	Description string    `json:"description"`
	ImageType   string    `gorm:"size:30" json:"image_type"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func (MaintenanceImage) TableName() string { return "maintenance_images" }

func (i *MaintenanceImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

package gateway

import "time"

const timestampLayout = "2006-01-02 15:04:05"

// BusinessProfile mirrors GET /api/v1/business/profile.
type BusinessProfile struct {
	BusinessID             string `json:"business_id"`
	Name                   string `json:"name"`
	Timezone               string `json:"timezone"`
	ReminderOffsetsMinutes []int  `json:"reminder_offsets_minutes"`
}

// BusinessProfileUpdate is the PUT body; nil fields are left unchanged.
type BusinessProfileUpdate struct {
	Name                   *string `json:"name,omitempty"`
	Timezone               *string `json:"timezone,omitempty"`
	ReminderOffsetsMinutes []int   `json:"reminder_offsets_minutes,omitempty"`
}

// Service is a bookable service offered by the business.
type Service struct {
	ID              string `json:"id"`
	BusinessID      string `json:"business_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
	Description     string `json:"description,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// NewService is the create-service body.
type NewService struct {
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	Description     string  `json:"description,omitempty"`
}

// Staff is a staff member.
type Staff struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
	Name       string `json:"name"`
	IsActive   bool   `json:"is_active"`
}

// NewStaff is the create-staff body.
type NewStaff struct {
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// WorkingHours describes one weekday for a staff member.
type WorkingHours struct {
	StaffID     string `json:"staff_id,omitempty"`
	Weekday     int    `json:"weekday"`
	IsWorking   bool   `json:"is_working"`
	StartMinute int    `json:"start_minute,omitempty"`
	EndMinute   int    `json:"end_minute,omitempty"`
}

// TimeOff is a blocked interval for a staff member.
type TimeOff struct {
	ID        string `json:"id"`
	StaffID   string `json:"staff_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

// NewTimeOff is the create-time-off body.
type NewTimeOff struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason,omitempty"`
}

// SlotQuery configures GET /api/v1/public/slots.
type SlotQuery struct {
	BusinessID      string
	StaffID         string
	ServiceID       string
	Date            string
	DurationMinutes int
	SlotStepMinutes int
}

// Slot is an open booking interval.
type Slot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// BookingRequest is the public booking body.
type BookingRequest struct {
	BusinessID    string `json:"business_id"`
	StaffID       string `json:"staff_id"`
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
}

// Booking is the public booking response.
type Booking struct {
	AppointmentID string `json:"appointment_id"`
}

// Appointment is a row from GET /api/v1/appointments.
type Appointment struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

// ParsedStartTime returns StartTime as time.Time when possible.
func (a Appointment) ParsedStartTime() time.Time {
	return parseTime(a.StartTime)
}

// CancelRequest is the appointment cancellation body.
type CancelRequest struct {
	BusinessID    string `json:"business_id"`
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason,omitempty"`
}

// Cancellation is the appointment cancellation response.
type Cancellation struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
}

// Entitlements are the plan limits attached to a subscription.
type Entitlements struct {
	Tier                   string `json:"tier"`
	MaxStaff               int    `json:"max_staff"`
	MaxServices            int    `json:"max_services"`
	MaxMonthlyAppointments int    `json:"max_monthly_appointments"`
}

// Subscription mirrors GET /api/v1/billing/subscription.
type Subscription struct {
	BusinessID   string        `json:"business_id"`
	Tier         string        `json:"tier"`
	Status       string        `json:"status"`
	UpdatedAt    string        `json:"updated_at"`
	Entitlements *Entitlements `json:"entitlements,omitempty"`
}

// CheckoutRequest starts a checkout for a tier.
type CheckoutRequest struct {
	Tier       string `json:"tier"`
	SuccessURL string `json:"success_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

// Checkout is the created checkout session.
type Checkout struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CheckoutSession mirrors GET /api/v1/billing/checkout/session.
type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	Tier        string `json:"tier"`
	Status      string `json:"status"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	CanceledAt  string `json:"canceled_at,omitempty"`
	ExpiredAt   string `json:"expired_at,omitempty"`
}

// CheckoutAck acknowledges a checkout return page visit.
type CheckoutAck struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	// Result is "success" or "cancel".
	Result string `json:"result"`
}

// Health is the loosely typed /healthz and /readyz payload.
type Health map[string]any

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(timestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}

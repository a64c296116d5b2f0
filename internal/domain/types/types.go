package types

import "strings"

type ServiceMode string

// Engine Service - HTTP API for ranking, performance, earnings and penalties
// Event Consumer - Ingests trip, attendance and complaint events from RabbitMQ
// Settlement Job - Month-end settlement of driver earnings
const (
	EngineService ServiceMode = "engine-service"
	EventConsumer ServiceMode = "event-consumer"
	SettlementJob ServiceMode = "settlement-job"
)

func (m ServiceMode) Valid() bool {
	switch m {
	case EngineService, EventConsumer, SettlementJob:
		return true
	}
	return false
}

// Performance category derived from score
type Category string

const (
	CategoryGreen  Category = "GREEN"
	CategoryYellow Category = "YELLOW"
	CategoryRed    Category = "RED"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryGreen, CategoryYellow, CategoryRed:
		return true
	}
	return false
}

// Enum для классов
type VehicleClass string

const (
	EconomyClass VehicleClass = "ECONOMY"
	PremiumClass VehicleClass = "PREMIUM"
	XLClass      VehicleClass = "XL"
)

func (v VehicleClass) Valid() bool {
	switch v {
	case EconomyClass, PremiumClass, XLClass:
		return true
	}
	return false
}

// Registry status of a driver
type DriverStatus string

const (
	DriverActive   DriverStatus = "ACTIVE"
	DriverInactive DriverStatus = "INACTIVE"
	DriverBlocked  DriverStatus = "BLOCKED"
)

// Attendance status for the current day
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceOnLeave AttendanceStatus = "ON_LEAVE"
)

func (a AttendanceStatus) Valid() bool {
	switch a {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceOnLeave:
		return true
	}
	return false
}

func (a *AttendanceStatus) UnmarshalText(b []byte) error {
	*a = AttendanceStatus(foldEnum(b))
	return nil
}

// Outcome of a trip assigned to a driver
type TripOutcome string

const (
	TripCompleted TripOutcome = "COMPLETED"
	TripCancelled TripOutcome = "CANCELLED"
	TripRejected  TripOutcome = "REJECTED"
)

func (o TripOutcome) Valid() bool {
	switch o {
	case TripCompleted, TripCancelled, TripRejected:
		return true
	}
	return false
}

// UnmarshalText accepts any case, the trip ledger sends "completed".
func (o *TripOutcome) UnmarshalText(b []byte) error {
	*o = TripOutcome(foldEnum(b))
	return nil
}

// Penalty state machine: NORMAL -> WARNED -> BLOCKED
type PenaltyState string

const (
	StateNormal  PenaltyState = "NORMAL"
	StateWarned  PenaltyState = "WARNED"
	StateBlocked PenaltyState = "BLOCKED"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type TriggerType string

const (
	TriggerLateArrival       TriggerType = "LATE_ARRIVAL"
	TriggerComplaintCount    TriggerType = "COMPLAINT_COUNT"
	TriggerCancellationCount TriggerType = "CANCELLATION_COUNT"
	TriggerAbsence           TriggerType = "ABSENCE"
	TriggerManual            TriggerType = "MANUAL"
)

type Recipient string

const (
	RecipientAdmin   Recipient = "ADMIN"
	RecipientManager Recipient = "MANAGER"
	RecipientDriver  Recipient = "DRIVER"
)

type ApplicationKind string

const (
	AppliedAutomatic ApplicationKind = "AUTOMATIC"
	AppliedManual    ApplicationKind = "MANUAL"
)

// Scope of an earnings config, most specific wins
type ConfigScope string

const (
	ScopeGlobal    ConfigScope = "GLOBAL"
	ScopeFranchise ConfigScope = "FRANCHISE"
	ScopeDriver    ConfigScope = "DRIVER"
)

type IncentiveType string

const (
	IncentiveFullExtra  IncentiveType = "FULL_EXTRA"
	IncentivePercentage IncentiveType = "PERCENTAGE"
)

// UnmarshalText accepts "full_extra" as well as "FULL_EXTRA", from JSON
// and YAML alike.
func (t *IncentiveType) UnmarshalText(b []byte) error {
	*t = IncentiveType(foldEnum(b))
	return nil
}

// foldEnum normalises wire spellings of enum values: upper case, with
// dashes and spaces as underscores.
func foldEnum(b []byte) string {
	s := strings.ToUpper(strings.TrimSpace(string(b)))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// Enum для роли пользователя
type UserRole string

func (r UserRole) String() string {
	return string(r)
}

const (
	AdminRole      UserRole = "ADMIN"
	ManagerRole    UserRole = "MANAGER"
	DispatcherRole UserRole = "DISPATCHER"
	DriverRole     UserRole = "DRIVER"
)

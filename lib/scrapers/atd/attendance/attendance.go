package attendance

import (
	"slices"
	"time"
)

// Status is the single derived state of one calendar day.
type Status string

const (
	StatusPending             Status = "pending"
	StatusLogged              Status = "logged"
	StatusHolidayWork         Status = "holiday_work"
	StatusAbsence             Status = "absence"
	StatusLate                Status = "late"
	StatusPaidVacation        Status = "paid_vacation"
	StatusSubstitutionHoliday Status = "substitution_holiday"
	StatusHoliday             Status = "holiday"
	StatusUnlogged            Status = "unlogged"
)

// EntryRaw is one day exactly as scraped from the table, before any
// interpretation. Immutable once parsed.
type EntryRaw struct {
	Date      time.Time
	DayOfWeek string
	Holiday   string

	ShiftTime     string
	ClockIn       string
	ClockOut      string
	WorkingHours  string
	OffShiftHours string
	Overtime      string
	NightShift    string
	BreakTime     string

	RawStatus []string
	Tooltip   string
	Pending   bool
}

// Entry is a raw day plus its derived interpretation.
type Entry struct {
	EntryRaw

	Status    Status
	IsLogged  bool
	IsHoliday bool
}

// fullyLogged means the day has a clock-in, a clock-out and computed
// working hours, a half-filled day does not count
func (r EntryRaw) fullyLogged() bool {
	return r.ClockIn != "" && r.ClockOut != "" && r.WorkingHours != ""
}

func (r EntryRaw) hasStatus(code string) bool {
	return slices.Contains(r.RawStatus, code)
}

// derive computes the primary status of a raw day. The precedence
// order is fixed, a pending row wins over everything and raw status
// codes only matter once the clock fields failed to decide.
func derive(raw EntryRaw) Entry {
	entry := Entry{
		EntryRaw:  raw,
		IsLogged:  raw.fullyLogged(),
		IsHoliday: raw.Holiday != "",
	}

	switch {
	case raw.Pending:
		entry.Status = StatusPending
	case entry.IsHoliday && entry.IsLogged:
		entry.Status = StatusHolidayWork
	case entry.IsLogged:
		entry.Status = StatusLogged
	case raw.hasStatus("A"):
		entry.Status = StatusAbsence
	case raw.hasStatus("L"):
		entry.Status = StatusLate
	case raw.hasStatus("PV"):
		entry.Status = StatusPaidVacation
	case raw.hasStatus("SH"):
		entry.Status = StatusSubstitutionHoliday
	case entry.IsHoliday:
		entry.Status = StatusHoliday
	default:
		entry.Status = StatusUnlogged
	}
	return entry
}

// codes the portal is known to emit, anything else is merely
// log-worthy, the vocabulary is not under our control
var knownStatusCodes = []string{"A", "L", "PV", "SH"}

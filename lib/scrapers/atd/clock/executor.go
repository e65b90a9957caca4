package clock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"atdkit/lib/scrapers/atd/core"
	"atdkit/lib/textutil"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/atd/clock")

// the portal answers insert posts with {"result": N}, 1 means accepted
const successResult = 1

var ErrDateInProgress = fmt.Errorf("a clock submission for this date is already running")

var ErrEmptyNotes = fmt.Errorf("notes must not be empty")

// ClockingUnsupportedError means the modification page is missing
// prerequisites and no submission was attempted at all.
type ClockingUnsupportedError struct {
	Missing []string
}

func (e *ClockingUnsupportedError) Error() string {
	return "clocking is not supported for this account, missing: " +
		strings.Join(e.Missing, ", ")
}

// SpotNotFoundError means a named spot could not be resolved against
// the available spots. Closest carries the best fuzzy match to help
// the user correct a typo.
type SpotNotFoundError struct {
	Name    string
	Closest string
}

func (e *SpotNotFoundError) Error() string {
	msg := fmt.Sprintf("no spot matching %q", e.Name)
	if e.Closest != "" {
		msg += fmt.Sprintf(", did you mean %q", e.Closest)
	}
	return msg
}

// SubmissionError is a failed clock-in or clock-out POST. Step is
// "in" or "out".
type SubmissionError struct {
	Step    string
	Message string
	Cause   error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("clock-%s submission failed: %s", e.Step, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// Request describes one day's clock-in/out submission. Either SpotId
// or SpotName selects the work location, SpotId wins when both are
// set.
type Request struct {
	Date     time.Time
	SpotId   string
	SpotName string
	ClockIn  string // HH:MM
	ClockOut string // HH:MM
	Notes    string
}

// Executor drives a submission through fetch, validate, resolve and
// the two insert posts. At most one submission per date may run at a
// time, a second caller gets ErrDateInProgress instead of racing the
// first one's token.
type Executor struct {
	core *core.Client

	mutex    sync.Mutex
	inFlight map[string]bool
}

func NewExecutor(core *core.Client) *Executor {
	return &Executor{
		core:     core,
		inFlight: map[string]bool{},
	}
}

func (e *Executor) Submit(ctx context.Context, req Request) error {
	ctx, span := tracer.Start(ctx, "Submit")
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clock submission failed")
		return err
	}

	// reject before any network traffic, the portal treats an empty
	// notice as a half-filled form
	if strings.TrimSpace(req.Notes) == "" {
		return fail(ErrEmptyNotes)
	}

	dateKey := req.Date.Format(time.DateOnly)
	if !e.lock(dateKey) {
		return fail(ErrDateInProgress)
	}
	defer e.unlock(dateKey)

	page, err := e.fetchModifyPage(ctx, req.Date)
	if err != nil {
		return fail(err)
	}
	if err := validate(page); err != nil {
		return fail(err)
	}
	spotId, err := resolveSpot(page.AvailableSpots, req.SpotId, req.SpotName)
	if err != nil {
		return fail(err)
	}

	if err := e.submit(ctx, "in", page, req, spotId, req.ClockIn); err != nil {
		return fail(err)
	}
	if err := e.submit(ctx, "out", page, req, spotId, req.ClockOut); err != nil {
		return fail(err)
	}
	return nil
}

// FetchModifyPage exposes the parsed page for callers that want to
// inspect form fields or spots without submitting anything.
func (e *Executor) FetchModifyPage(ctx context.Context, date time.Time) (ModifyPageData, error) {
	ctx, span := tracer.Start(ctx, "FetchModifyPage")
	defer span.End()

	page, err := e.fetchModifyPage(ctx, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch modify page")
		return ModifyPageData{}, err
	}
	return page, nil
}

func (e *Executor) fetchModifyPage(ctx context.Context, date time.Time) (ModifyPageData, error) {
	query := url.Values{
		"year":  {strconv.Itoa(date.Year())},
		"month": {strconv.Itoa(int(date.Month()))},
		"day":   {strconv.Itoa(date.Day())},
	}
	res, err := e.core.Get(ctx, "/employee/adit/modify", query)
	if err != nil {
		return ModifyPageData{}, err
	}
	return ParseModifyPage(res.Body())
}

func validate(page ModifyPageData) error {
	var missing []string
	if page.Token == "" {
		missing = append(missing, "form token")
	}
	if page.ClientId == "" {
		missing = append(missing, "client id")
	}
	if page.EmployeeId == "" {
		missing = append(missing, "employee id")
	}
	if len(page.AvailableSpots) == 0 {
		missing = append(missing, "available spots")
	}
	if len(missing) > 0 {
		return &ClockingUnsupportedError{Missing: missing}
	}
	return nil
}

func resolveSpot(spots []Spot, id, name string) (string, error) {
	if id != "" {
		return id, nil
	}
	if name == "" {
		slog.Warn("no spot specified, defaulting to the first available",
			"spot", spots[0].Name)
		return spots[0].Id, nil
	}

	normalized := textutil.NormalizeName(name)
	for _, spot := range spots {
		spotName := textutil.NormalizeName(spot.Name)
		if strings.Contains(spotName, normalized) || strings.Contains(normalized, spotName) {
			return spot.Id, nil
		}
	}

	closest := ""
	best := 0.0
	for _, spot := range spots {
		similarity := matchr.JaroWinkler(name, spot.Name, false)
		if similarity > best {
			best = similarity
			closest = spot.Name
		}
	}
	return "", &SpotNotFoundError{Name: name, Closest: closest}
}

type insertResponse struct {
	Result int `json:"result"`
}

func (e *Executor) submit(ctx context.Context, step string, page ModifyPageData, req Request, spotId, clockTime string) error {
	compact, err := compactTime(clockTime)
	if err != nil {
		return &SubmissionError{Step: step, Message: "invalid time", Cause: err}
	}

	form := url.Values{
		"token":          {page.Token},
		"year":           {strconv.Itoa(req.Date.Year())},
		"month":          {strconv.Itoa(int(req.Date.Month()))},
		"day":            {strconv.Itoa(req.Date.Day())},
		"client_id":      {page.ClientId},
		"employee_id":    {page.EmployeeId},
		"delete_minutes": {""},
		"time":           {compact},
		"group_id":       {spotId},
		"notice":         {req.Notes},
		"_":              {""},
	}
	res, err := e.core.PostForm(ctx, "/employee/adit/insert/", form)
	if err != nil {
		return &SubmissionError{Step: step, Message: "request failed", Cause: err}
	}
	if !res.IsSuccess() {
		return &SubmissionError{
			Step:    step,
			Message: fmt.Sprintf("unexpected status %d", res.StatusCode()),
		}
	}

	var payload insertResponse
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		return &SubmissionError{Step: step, Message: "unreadable response", Cause: err}
	}
	if payload.Result != successResult {
		return &SubmissionError{
			Step:    step,
			Message: fmt.Sprintf("portal rejected the submission (result %d)", payload.Result),
		}
	}
	return nil
}

// compactTime turns "HH:MM" into the 4-digit form the insert endpoint
// expects, "09:58" becomes "0958".
func compactTime(s string) (string, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", err
	}
	return t.Format("1504"), nil
}

func (e *Executor) lock(date string) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.inFlight[date] {
		return false
	}
	e.inFlight[date] = true
	return true
}

func (e *Executor) unlock(date string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.inFlight, date)
}

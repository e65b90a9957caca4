package clock

import (
	"fmt"
	"slices"
	"strings"

	"atdkit/lib/htmlutil"
	"atdkit/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

type FieldType string

const (
	FieldSelect FieldType = "select"
	FieldText   FieldType = "text"
	FieldTime   FieldType = "time"
)

// canonical field names the rest of the package keys on
const (
	FieldGroupId      = "group_id"
	FieldNotice       = "notice"
	FieldClockInTime  = "clockInTime"
	FieldClockOutTime = "clockOutTime"
)

// ClockField is one discovered input on the clock-modification form.
type ClockField struct {
	Name         string
	Type         FieldType
	Required     bool
	Label        string
	Options      []htmlutil.Option
	DefaultValue string
}

// hidden plumbing the form carries for its own protocol, never shown
// to the user
var systemFields = []string{"token", "client_id", "employee_id"}

type fieldParser func(doc *goquery.Document, sel *goquery.Selection, name string) (ClockField, bool)

// DiscoverFields scans the modification form and classifies every
// input it can make sense of. The portal regenerates this form
// server-side so nothing about it is guaranteed, known names get
// dedicated parsers and the rest is matched heuristically. The
// clockInTime/clockOutTime keys are always present in the result, the
// executor depends on them.
func DiscoverFields(doc *goquery.Document) []ClockField {
	parsers := []fieldParser{
		parseRegistered,
		parseSelect,
		parseTimeField,
		parseTextField,
	}

	var fields []ClockField
	seen := map[string]bool{}
	doc.Find("form select, form input, form textarea").Each(func(_ int, sel *goquery.Selection) {
		name := sel.AttrOr("name", "")
		if name == "" || seen[name] {
			return
		}
		for _, parse := range parsers {
			field, ok := parse(doc, sel, name)
			if !ok {
				continue
			}
			// a time parser can rename its input, track both names so a
			// second input mapping to the same canonical key is dropped
			if !seen[field.Name] {
				fields = append(fields, field)
			}
			seen[name] = true
			seen[field.Name] = true
			break
		}
	})

	if !seen[FieldClockInTime] {
		fields = append(fields, ClockField{
			Name:         FieldClockInTime,
			Type:         FieldTime,
			Label:        "Clock in",
			DefaultValue: "10:00",
		})
	}
	if !seen[FieldClockOutTime] {
		fields = append(fields, ClockField{
			Name:         FieldClockOutTime,
			Type:         FieldTime,
			Label:        "Clock out",
			DefaultValue: "19:00",
		})
	}
	return fields
}

func parseRegistered(doc *goquery.Document, sel *goquery.Selection, name string) (ClockField, bool) {
	switch name {
	case FieldGroupId:
		options := htmlutil.SelectOptions(sel)
		if len(options) == 0 {
			return ClockField{}, false
		}
		return ClockField{
			Name:     name,
			Type:     FieldSelect,
			Required: true,
			Label:    htmlutil.LabelFor(doc, sel, name),
			Options:  options,
		}, true
	case FieldNotice:
		return ClockField{
			Name:     name,
			Type:     FieldText,
			Required: true,
			Label:    htmlutil.LabelFor(doc, sel, name),
		}, true
	}
	return ClockField{}, false
}

func parseSelect(doc *goquery.Document, sel *goquery.Selection, name string) (ClockField, bool) {
	if goquery.NodeName(sel) != "select" {
		return ClockField{}, false
	}
	options := htmlutil.SelectOptions(sel)
	if len(options) == 0 {
		return ClockField{}, false
	}
	return ClockField{
		Name:     name,
		Type:     FieldSelect,
		Required: true,
		Label:    htmlutil.LabelFor(doc, sel, name),
		Options:  options,
	}, true
}

func mentionsTime(s string) bool {
	return textutil.MatchName(s, []string{"time", "clock"})
}

// parseTimeField maps anything that smells like a time input onto the
// two canonical keys. "out" is checked before "in" because "in" is a
// substring of too many words to test first.
func parseTimeField(doc *goquery.Document, sel *goquery.Selection, name string) (ClockField, bool) {
	// a textarea is free text no matter what its name says
	if goquery.NodeName(sel) == "textarea" {
		return ClockField{}, false
	}
	label := htmlutil.LabelFor(doc, sel, name)
	if !mentionsTime(name) && !mentionsTime(label) {
		return ClockField{}, false
	}

	subject := strings.ToLower(name + " " + label)
	var canonical string
	switch {
	case strings.Contains(subject, "out"):
		canonical = FieldClockOutTime
	case strings.Contains(subject, "in"):
		canonical = FieldClockInTime
	default:
		return ClockField{}, false
	}

	_, required := sel.Attr("required")
	return ClockField{
		Name:     canonical,
		Type:     FieldTime,
		Required: required,
		Label:    label,
	}, true
}

func parseTextField(doc *goquery.Document, sel *goquery.Selection, name string) (ClockField, bool) {
	if sel.AttrOr("type", "") == "hidden" {
		return ClockField{}, false
	}
	if slices.Contains(systemFields, name) {
		return ClockField{}, false
	}
	_, required := sel.Attr("required")
	return ClockField{
		Name:     name,
		Type:     FieldText,
		Required: required,
		Label:    htmlutil.LabelFor(doc, sel, name),
	}, true
}

const schemaSeparator = ";;"

// GenerateFieldSchema builds an order-independent fingerprint of a
// field set, used only for equality against a previously stored
// fingerprint. Labels and default values deliberately don't
// participate, cosmetic rewording of the form is not drift.
func GenerateFieldSchema(fields []ClockField) string {
	sorted := slices.Clone(fields)
	slices.SortFunc(sorted, func(a, b ClockField) int {
		return strings.Compare(a.Name, b.Name)
	})

	parts := make([]string, 0, len(sorted))
	for _, field := range sorted {
		requirement := "optional"
		if field.Required {
			requirement = "required"
		}
		part := fmt.Sprintf("%s:%s:%s", field.Name, field.Type, requirement)
		if len(field.Options) > 0 {
			part += fmt.Sprintf(":options:%d", len(field.Options))
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, schemaSeparator)
}

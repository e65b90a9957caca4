package clock

import (
	"bytes"
	"fmt"

	"atdkit/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Spot is one selectable work location on the modification form.
type Spot struct {
	Id   string
	Name string
}

// ModifyPageData is a one-shot snapshot of a single day's
// modification page. It is tied to that day's token and must never be
// cached or reused across submissions.
type ModifyPageData struct {
	Token          string
	ClientId       string
	EmployeeId     string
	AvailableSpots []Spot
	FormFields     []ClockField
}

// ParseModifyPage extracts the submission plumbing and runs field
// discovery over the same document.
func ParseModifyPage(html []byte) (ModifyPageData, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ModifyPageData{}, fmt.Errorf("parse modify page: %w", err)
	}

	hidden := func(name string) string {
		return doc.Find(`input[name="` + name + `"]`).First().AttrOr("value", "")
	}

	data := ModifyPageData{
		Token:      hidden("token"),
		ClientId:   hidden("client_id"),
		EmployeeId: hidden("employee_id"),
	}

	for _, opt := range htmlutil.SelectOptions(doc.Find(`select[name="group_id"]`).First()) {
		if opt.Value == "" {
			continue
		}
		data.AvailableSpots = append(data.AvailableSpots, Spot{
			Id:   opt.Value,
			Name: opt.Label,
		})
	}

	data.FormFields = DiscoverFields(doc)
	return data, nil
}

package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	require.Equal(t, "10:00 19:00", CleanText("  10:00\n\t  19:00 "))
	require.Equal(t, "", CleanText(" \n\t "))
}

func TestGetText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<td><a href="#"><font>01/15</font>(Wed)</a></td>`,
	))
	if err != nil {
		t.Fatal(err)
	}
	nodes := doc.Find("td").Nodes
	require.Len(t, nodes, 1)
	require.Equal(t, "01/15(Wed)", GetText(nodes[0]))
}

func TestSelectOptions(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<select name="group_id">
			<option value="1">Tokyo Office</option>
			<option value="2">Osaka Office</option>
		</select>`,
	))
	if err != nil {
		t.Fatal(err)
	}
	options := SelectOptions(doc.Find("select[name=group_id]"))
	require.Len(t, options, 2)
	require.Equal(t, Option{Value: "1", Label: "Tokyo Office"}, options[0])
	require.Equal(t, Option{Value: "2", Label: "Osaka Office"}, options[1])
}

func TestLabelFor(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<form>
			<label for="notice_field">Notes</label>
			<input id="notice_field" name="notice" type="text">
			<div>
				<label>Start</label>
				<input name="start_time" type="text">
			</div>
			<table><tr>
				<th>choose group_id here</th>
				<td><select name="group_id"><option value="1">a</option></select></td>
			</tr></table>
			<input name="mystery" type="text">
		</form>`,
	))
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, "Notes", LabelFor(doc, doc.Find("input[name=notice]"), "notice"))
	require.Equal(t, "Start", LabelFor(doc, doc.Find("input[name=start_time]"), "start_time"))
	require.Equal(t, "choose group_id here", LabelFor(doc, doc.Find("select[name=group_id]"), "group_id"))
}

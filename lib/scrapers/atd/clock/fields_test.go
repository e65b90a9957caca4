package clock

import (
	"bytes"
	"context"
	"testing"

	"atdkit/lib/htmlutil"
	"atdkit/lib/kvstore"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const modifyFormHtml = `<html><body>
<form action="/employee/adit/insert/" method="post">
	<input type="hidden" name="token" value="tok123">
	<input type="hidden" name="client_id" value="77">
	<input type="hidden" name="employee_id" value="42">
	<table>
		<tr>
			<th>勤務地</th>
			<td>
				<label>勤務地</label>
				<select name="group_id">
					<option value="1">Tokyo Office</option>
					<option value="2">Osaka Office</option>
				</select>
			</td>
		</tr>
		<tr>
			<th>Clock in time</th>
			<td><input type="text" name="clock_in_time" value=""></td>
		</tr>
		<tr>
			<th>Clock out time</th>
			<td><input type="text" name="clock_out_time" value=""></td>
		</tr>
		<tr>
			<th>notice</th>
			<td><textarea name="notice" required></textarea></td>
		</tr>
		<tr>
			<th>Project code</th>
			<td><input type="text" name="project_code"></td>
		</tr>
	</table>
</form>
</body></html>`

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	require.NoError(t, err)
	return doc
}

func fieldByName(fields []ClockField, name string) (ClockField, bool) {
	for _, field := range fields {
		if field.Name == name {
			return field, true
		}
	}
	return ClockField{}, false
}

func TestDiscoverFields(t *testing.T) {
	fields := DiscoverFields(parseDoc(t, modifyFormHtml))

	group, ok := fieldByName(fields, FieldGroupId)
	require.True(t, ok)
	require.Equal(t, FieldSelect, group.Type)
	require.True(t, group.Required)
	require.Len(t, group.Options, 2)
	require.Equal(t, "勤務地", group.Label)

	notice, ok := fieldByName(fields, FieldNotice)
	require.True(t, ok)
	require.Equal(t, FieldText, notice.Type)
	require.True(t, notice.Required)

	in, ok := fieldByName(fields, FieldClockInTime)
	require.True(t, ok)
	require.Equal(t, FieldTime, in.Type)
	require.Empty(t, in.DefaultValue, "a discovered time field carries no synthetic default")

	out, ok := fieldByName(fields, FieldClockOutTime)
	require.True(t, ok)
	require.Equal(t, FieldTime, out.Type)

	project, ok := fieldByName(fields, "project_code")
	require.True(t, ok)
	require.Equal(t, FieldText, project.Type)
	require.False(t, project.Required)

	for _, name := range []string{"token", "client_id", "employee_id"} {
		_, ok := fieldByName(fields, name)
		require.False(t, ok, "hidden system field %q must not be discovered", name)
	}
}

func TestDiscoverFieldsSynthesizesTimeFields(t *testing.T) {
	fields := DiscoverFields(parseDoc(t, `<html><body><form>
		<select name="group_id"><option value="1">HQ</option></select>
		<textarea name="notice"></textarea>
	</form></body></html>`))

	in, ok := fieldByName(fields, FieldClockInTime)
	require.True(t, ok)
	require.Equal(t, "10:00", in.DefaultValue)
	require.False(t, in.Required)

	out, ok := fieldByName(fields, FieldClockOutTime)
	require.True(t, ok)
	require.Equal(t, "19:00", out.DefaultValue)
	require.False(t, out.Required)
}

func TestDiscoverFieldsTextareaStaysText(t *testing.T) {
	fields := DiscoverFields(parseDoc(t, `<html><body><form>
		<textarea name="clock_out_note" required></textarea>
	</form></body></html>`))

	reason, ok := fieldByName(fields, "clock_out_note")
	require.True(t, ok)
	require.Equal(t, FieldText, reason.Type)
	require.True(t, reason.Required)

	// the synthetic time fields must still appear under their own keys
	_, ok = fieldByName(fields, FieldClockInTime)
	require.True(t, ok)
	_, ok = fieldByName(fields, FieldClockOutTime)
	require.True(t, ok)
}

func TestGenerateFieldSchemaOrderIndependent(t *testing.T) {
	a := ClockField{Name: "group_id", Type: FieldSelect, Required: true,
		Options: []htmlutil.Option{{Value: "1"}, {Value: "2"}}}
	b := ClockField{Name: "notice", Type: FieldText, Required: true}
	c := ClockField{Name: "clockInTime", Type: FieldTime}

	require.Equal(t,
		GenerateFieldSchema([]ClockField{a, b, c}),
		GenerateFieldSchema([]ClockField{c, a, b}))

	flipped := b
	flipped.Required = false
	require.NotEqual(t,
		GenerateFieldSchema([]ClockField{a, b, c}),
		GenerateFieldSchema([]ClockField{a, flipped, c}))

	fewerOptions := a
	fewerOptions.Options = a.Options[:1]
	require.NotEqual(t,
		GenerateFieldSchema([]ClockField{a, b, c}),
		GenerateFieldSchema([]ClockField{fewerOptions, b, c}))

	retyped := c
	retyped.Type = FieldText
	require.NotEqual(t,
		GenerateFieldSchema([]ClockField{a, b, c}),
		GenerateFieldSchema([]ClockField{a, b, retyped}))
}

func TestHasFieldSchemaChanged(t *testing.T) {
	kv, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	defer kv.Close()
	ctx := context.Background()

	first := DiscoverFields(parseDoc(t, modifyFormHtml))
	changed, err := HasFieldSchemaChanged(ctx, kv, first)
	require.NoError(t, err)
	require.False(t, changed, "the first fetch has no baseline to drift from")

	changed, err = HasFieldSchemaChanged(ctx, kv, first)
	require.NoError(t, err)
	require.False(t, changed)

	// the group_id select disappears from the form
	withoutGroup := DiscoverFields(parseDoc(t, `<html><body><form>
		<textarea name="notice" required></textarea>
	</form></body></html>`))
	changed, err = HasFieldSchemaChanged(ctx, kv, withoutGroup)
	require.NoError(t, err)
	require.True(t, changed)

	require.NoError(t, RememberFieldSchema(ctx, kv, withoutGroup))
	changed, err = HasFieldSchemaChanged(ctx, kv, withoutGroup)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestRememberedValues(t *testing.T) {
	kv, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	defer kv.Close()
	ctx := context.Background()

	remembered := NewRemembered(kv)
	_, ok, err := remembered.Get(ctx, "notice")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, remembered.Set(ctx, "notice", "worked from home"))
	require.NoError(t, remembered.Set(ctx, "group_id", "2"))

	value, ok, err := remembered.Get(ctx, "notice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "worked from home", value)

	all, err := remembered.All(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"notice":   "worked from home",
		"group_id": "2",
	}, all)

	require.NoError(t, remembered.Clear(ctx))
	all, err = remembered.All(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

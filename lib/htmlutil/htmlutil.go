package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText collapses the whitespace soup that server-rendered
// templates leave inside table cells into a single trimmed line.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

type Option struct {
	Value string
	Label string
}

// SelectOptions reads every <option> under sel into value/label pairs.
func SelectOptions(sel *goquery.Selection) []Option {
	var options []Option
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		options = append(options, Option{
			Value: opt.AttrOr("value", ""),
			Label: CleanText(opt.Text()),
		})
	})
	return options
}

// LabelFor resolves the human label of a form input. It tries, in order:
// a <label for=id> association, a <label> inside the nearest ancestor
// that has one, then a table header cell in the same row whose text
// mentions the field's name.
func LabelFor(doc *goquery.Document, field *goquery.Selection, name string) string {
	if id, ok := field.Attr("id"); ok && id != "" {
		label := doc.Find("label[for=" + id + "]")
		if label.Length() > 0 {
			return CleanText(label.Text())
		}
	}

	// the ancestor walk stops before form/table scope, a label found that
	// far up belongs to some other field
	for parent := field.Parent(); parent.Length() > 0; parent = parent.Parent() {
		if name := goquery.NodeName(parent); name == "form" || name == "table" || name == "body" {
			break
		}
		label := parent.Find("label")
		if label.Length() > 0 {
			return CleanText(label.First().Text())
		}
	}

	var found string
	field.Closest("tr").Find("th").Each(func(_ int, th *goquery.Selection) {
		if found != "" {
			return
		}
		text := CleanText(th.Text())
		if strings.Contains(strings.ToLower(text), strings.ToLower(name)) {
			found = text
		}
	})
	return found
}

package web

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const htmlFixture = `
<html><body>
	<div class="outer">
		<span class="item first">one</span>
		<span class="item">two</span>
		<p id="para">some <b>bold</b> text</p>
	</div>
</body></html>`

func parseFixture(t *testing.T) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(htmlFixture))
	require.NoError(t, err)
	return doc
}

func TestFindAllByClass(t *testing.T) {
	doc := parseFixture(t)

	items := FindAll(doc, ByClass("item"))
	require.Len(t, items, 2)
	assert.Equal(t, "one", Text(items[0]))
	assert.Equal(t, "two", Text(items[1]))
}

func TestFindFirst(t *testing.T) {
	doc := parseFixture(t)

	first := FindFirst(doc, ByClass("item"))
	require.NotNil(t, first)
	assert.Equal(t, "one", Text(first))

	assert.Nil(t, FindFirst(doc, ByClass("absent")))
}

func TestByTag(t *testing.T) {
	doc := parseFixture(t)

	p := FindFirst(doc, ByTag("p"))
	require.NotNil(t, p)
	assert.Equal(t, "para", Attr(p, "id"))
}

func TestTextConcatenatesChildren(t *testing.T) {
	doc := parseFixture(t)

	p := FindFirst(doc, ByTag("p"))
	require.NotNil(t, p)
	assert.Equal(t, "some bold text", Text(p))
}

func TestAttrMissing(t *testing.T) {
	doc := parseFixture(t)
	p := FindFirst(doc, ByTag("p"))
	require.NotNil(t, p)
	assert.Equal(t, "", Attr(p, "href"))
}

package h

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, n H) string {
	t.Helper()
	var b bytes.Buffer
	require.NoError(t, n.Render(&b))
	return b.String()
}

func TestElementsNestAndEscape(t *testing.T) {
	out := render(t, Div(ID("root"), H1(Text("<Home>")), P(Textf("%d", 42))))
	assert.Equal(t, `<div id="root"><h1>&lt;Home&gt;</h1><p>42</p></div>`, out)
}

func TestIfSkipsNil(t *testing.T) {
	out := render(t, Div(If(false, Text("hidden")), If(true, Text("shown"))))
	assert.Equal(t, "<div>shown</div>", out)
}

func TestDataAttribute(t *testing.T) {
	out := render(t, A(Href("/counter"), Data("on:click__prevent", "@get('/x')"), Text("go")))
	assert.Equal(t, `<a href="/counter" data-on:click__prevent="@get(&#39;/x&#39;)">go</a>`, out)
}

func TestHTML5(t *testing.T) {
	out := render(t, HTML5(HTML5Props{
		Title: "Front",
		Head:  []H{Meta(Data("signals", "{}"))},
		Body:  []H{Div(Text("body"))},
	}))
	assert.Contains(t, out, "<!doctype html>")
	assert.Contains(t, out, "<title>Front</title>")
	assert.Contains(t, out, `<meta data-signals="{}">`)
	assert.Contains(t, out, "<div>body</div>")
}

func TestGroup(t *testing.T) {
	out := render(t, Div(Group(Span(Text("a")), nil, Span(Text("b")))))
	assert.Equal(t, "<div><span>a</span><span>b</span></div>", out)
}

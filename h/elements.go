package h

import gh "maragu.dev/gomponents/html"

func A(children ...H) H { return gh.A(retype(children)...) }

func Br(children ...H) H { return gh.Br(retype(children)...) }

func Div(children ...H) H { return gh.Div(retype(children)...) }

func Footer(children ...H) H { return gh.Footer(retype(children)...) }

func H1(children ...H) H { return gh.H1(retype(children)...) }

func H2(children ...H) H { return gh.H2(retype(children)...) }

func Header(children ...H) H { return gh.Header(retype(children)...) }

func Hr(children ...H) H { return gh.Hr(retype(children)...) }

func Li(children ...H) H { return gh.Li(retype(children)...) }

func Link(children ...H) H { return gh.Link(retype(children)...) }

func Main(children ...H) H { return gh.Main(retype(children)...) }

func Meta(children ...H) H { return gh.Meta(retype(children)...) }

func Nav(children ...H) H { return gh.Nav(retype(children)...) }

func P(children ...H) H { return gh.P(retype(children)...) }

func Script(children ...H) H { return gh.Script(retype(children)...) }

func Section(children ...H) H { return gh.Section(retype(children)...) }

func Span(children ...H) H { return gh.Span(retype(children)...) }

func Strong(children ...H) H { return gh.Strong(retype(children)...) }

// StyleEl is the <style> element. See [Style] for the attribute.
func StyleEl(children ...H) H { return gh.StyleEl(retype(children)...) }

func Ul(children ...H) H { return gh.Ul(retype(children)...) }

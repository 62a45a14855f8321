package h

import gh "maragu.dev/gomponents/html"

func Aria(name, v string) H { return gh.Aria(name, v) }

func Class(v string) H { return gh.Class(v) }

// Data attributes are how Datastar finds its bindings, e.g.
// h.Data("on:click", "@get('/x')") renders data-on:click="@get('/x')".
func Data(name, v string) H { return gh.Data(name, v) }

func Href(v string) H { return gh.Href(v) }

func ID(v string) H { return gh.ID(v) }

func Rel(v string) H { return gh.Rel(v) }

func Role(v string) H { return gh.Role(v) }

func Src(v string) H { return gh.Src(v) }

func Style(v string) H { return gh.Style(v) }

func Type(v string) H { return gh.Type(v) }

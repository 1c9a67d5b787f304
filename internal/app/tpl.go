package app

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/yaap/internal/session"
)

// page is the data for the base layout. Body is pre-rendered HTML; Title and
// Aside are escaped by the template.
type page struct {
	Title string
	Aside string
	Error bool
	Body  template.HTML
}

var baseTpl = template.Must(template.New("base").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body {max-width: 48em; margin: 1em auto 2em auto; color: #444; line-height: 1.6;}
aside {background: #4caf50; margin: 1em 0; padding: 0.3em 1em; border-radius: 3px; color: #fff;}
aside.error {background: #e93232;}
dt {font-weight: bold;}
dd {margin: 0 0 10px 0;}
</style>
</head>
<body><h1>{{.Title}}</h1>
{{if .Aside}}<aside{{if .Error}} class="error"{{end}}>{{.Aside}}</aside>{{end}}
{{.Body}}</body></html>
`))

func (h handler) render(c echo.Context, status int, p page) error {
	var buf bytes.Buffer
	if err := baseTpl.Execute(&buf, p); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func (h handler) loginBody(c echo.Context) template.HTML {
	return template.HTML(fmt.Sprintf(`<form method="post" action="%s">
<fieldset>
<legend>Please sign in to continue:</legend>
<input name="username" type="text" placeholder="Username" value=""/>
<input name="password" type="password" placeholder="Password" value=""/>
<input type="submit" value="Sign in"/>
</fieldset></form>`,
		template.HTMLEscapeString(withFromURL(c, h.cfg.Routes.Login)),
	))
}

func (h handler) logoutBody(c echo.Context) template.HTML {
	return template.HTML(fmt.Sprintf(`<form method="post" action="%s">
<fieldset>
<input type="submit" value="log out"/>
</fieldset></form>`,
		template.HTMLEscapeString(withFromURL(c, h.cfg.Routes.Logout)),
	))
}

func (h handler) signupBody(c echo.Context) template.HTML {
	return template.HTML(fmt.Sprintf(`<form method="post" action="%s">
<fieldset>
<legend>Create an account:</legend>
<input name="username" type="text" placeholder="Username" value=""/>
<input name="email" type="email" placeholder="Email" value=""/>
<input name="password" type="password" placeholder="Password" value=""/>
<input type="submit" value="Register"/>
</fieldset></form>`,
		template.HTMLEscapeString(withFromURL(c, h.cfg.Routes.Register)),
	))
}

func (h handler) profileBody(c echo.Context, identity session.Identity) template.HTML {
	groups := "none"
	if len(identity.Groups) > 0 {
		var escaped bytes.Buffer
		for i, group := range identity.Groups {
			if i > 0 {
				escaped.WriteString(", ")
			}
			escaped.WriteString(template.HTMLEscapeString(group))
		}
		groups = escaped.String()
	}
	return template.HTML(fmt.Sprintf(`<dl>
<dt>Username</dt><dd>%s</dd>
<dt>Email</dt><dd>%s</dd>
<dt>Groups</dt><dd>%s</dd>
</dl>`,
		template.HTMLEscapeString(identity.Username),
		template.HTMLEscapeString(identity.Email),
		groups,
	)) + h.logoutBody(c)
}

func (h handler) demoBody(c echo.Context) template.HTML {
	return template.HTML(fmt.Sprintf(`<ul>
<li><a href="/required/">Page with login required</a> (visible to any logged in user)</li>
<li><a href="/special/">Page restricted to special users</a> (visible to members of the 'special' group)</li>
<li><a href="%s">User profile</a></li>
<li><a href="%s">Login</a></li>
<li><a href="%s">Logout</a></li>
</ul>`,
		template.HTMLEscapeString(h.cfg.Routes.User),
		template.HTMLEscapeString(withFromURL(c, h.cfg.Routes.Login)),
		template.HTMLEscapeString(withFromURL(c, h.cfg.Routes.Logout)),
	))
}

package notify

import "html/template"

// section is one language block of a bilingual email.
type section struct {
	Lang         string
	Dir          string
	Greeting     string
	Intro        string
	Reference    string
	StatusLabel  string
	ResponseTime string
	TrackLabel   string
}

type clientMail struct {
	Sections []section
	TrackURL string
}

var clientTmpl = template.Must(template.New("client").Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif">
{{range .Sections}}<div lang="{{.Lang}}" dir="{{.Dir}}" style="margin-bottom:24px">
<p>{{.Greeting}}</p>
<p>{{.Intro}}</p>
<p><strong>{{.Reference}}</strong></p>
{{if .StatusLabel}}<p>{{.StatusLabel}}</p>{{end}}
{{if .ResponseTime}}<p>{{.ResponseTime}}</p>{{end}}
<p><a href="{{$.TrackURL}}">{{.TrackLabel}}</a></p>
</div>{{end}}
</body></html>`))

type adminMail struct {
	Reference   string
	ClientName  string
	ClientPhone string
	ClientEmail string
	Address     string
	Type        string
	Category    string
	Priority    string
	Description string
	Preferred   string
	AdminURL    string
}

var adminTmpl = template.Must(template.New("admin").Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif">
<h2>New maintenance request {{.Reference}}</h2>
<table cellpadding="4">
<tr><td>Client</td><td>{{.ClientName}}</td></tr>
<tr><td>Phone</td><td>{{.ClientPhone}}</td></tr>
<tr><td>Email</td><td>{{.ClientEmail}}</td></tr>
<tr><td>Address</td><td>{{.Address}}</td></tr>
<tr><td>Type</td><td>{{.Type}} / {{.Category}}</td></tr>
<tr><td>Priority</td><td><strong>{{.Priority}}</strong></td></tr>
<tr><td>Preferred visit</td><td>{{.Preferred}}</td></tr>
</table>
<p>{{.Description}}</p>
<p><a href="{{.AdminURL}}">Open in admin dashboard</a></p>
</body></html>`))

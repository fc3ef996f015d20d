package renderer

import (
	htmltemplate "html/template"
	texttemplate "text/template"
)

const (
	subscribeSubject  = "Daily speech topic - Verification code"
	dailyTopicSubject = "Daily speech topic - "
)

type subscribeData struct {
	VerifyURL      string
	UnsubscribeURL string
	SiteURL        string
}

type dailyTopicData struct {
	Topic          string
	UnsubscribeURL string
	SiteURL        string
}

var subscribeHTML = htmltemplate.Must(htmltemplate.New("subscribe.html").Parse(
	`<h3>Speech topic email verification</h3>` +
		`<a href="{{.VerifyURL}}">Click here to verify</a><br><br>` +
		`<a href="{{.SiteURL}}">More speech topics</a>&nbsp;or&nbsp;` +
		`<a href="{{.UnsubscribeURL}}">Unsubscribe</a>`))

var subscribeText = texttemplate.Must(texttemplate.New("subscribe.txt").Parse(
	"Speech topic email verification\n\n" +
		"Navigate here to verify your email {{.VerifyURL}}\n\n" +
		"More topics - {{.SiteURL}}\n" +
		"Unsubscribe - {{.UnsubscribeURL}}"))

var dailyTopicHTML = htmltemplate.Must(htmltemplate.New("dailytopic.html").Parse(
	`<h3>Speech topic of the day</h3>` +
		`<p>{{.Topic}}</p>` +
		`<a href="{{.SiteURL}}">More speech topics</a>&nbsp;or&nbsp;` +
		`<a href="{{.UnsubscribeURL}}">Unsubscribe</a>`))

var dailyTopicText = texttemplate.Must(texttemplate.New("dailytopic.txt").Parse(
	"Speech topic of the day\n\n" +
		"{{.Topic}}\n\n" +
		"More topics - {{.SiteURL}}\n" +
		"Unsubscribe - {{.UnsubscribeURL}}"))

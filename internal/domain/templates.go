package domain

import (
	"bytes"
	"fmt"
	"text/template"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

// RenderedMessage is a template evaluated against caller data.
type RenderedMessage struct {
	Subject string
	Message string
}

var templates = map[string]messageTemplate{
	"order_confirmation": mustTemplate("order_confirmation",
		"Order {{.orderId}} confirmed",
		"Hi {{or .customerName \"there\"}}, we received your order {{.orderId}}. We will let you know when it ships."),
	"order_shipped": mustTemplate("order_shipped",
		"Order {{.orderId}} shipped",
		"Your order {{.orderId}} is on its way.{{if .trackingNumber}} Tracking number: {{.trackingNumber}}.{{end}}"),
	"order_cancelled": mustTemplate("order_cancelled",
		"Order {{.orderId}} cancelled",
		"Your order {{.orderId}} has been cancelled. Any payment will be refunded."),
	"low_stock": mustTemplate("low_stock",
		"Low stock: {{.productName}}",
		"{{.productName}} has {{.currentStock}} units left (threshold {{.threshold}})."),
}

func mustTemplate(name, subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Option("missingkey=zero").Parse(body)),
	}
}

func HasTemplate(id string) bool {
	_, ok := templates[id]
	return ok
}

// RenderTemplate evaluates the named template with data.
func RenderTemplate(id string, data map[string]string) (RenderedMessage, error) {
	tmpl, ok := templates[id]
	if !ok {
		return RenderedMessage{}, fmt.Errorf("unknown template: %s", id)
	}
	if data == nil {
		data = map[string]string{}
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return RenderedMessage{}, fmt.Errorf("template %s subject: %w", id, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return RenderedMessage{}, fmt.Errorf("template %s body: %w", id, err)
	}
	return RenderedMessage{Subject: subject.String(), Message: body.String()}, nil
}

package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

// Kind selects the message template. Lifecycle kinds line up one-to-one
// with order statuses; the mapping lives with the order state machine.
type Kind int

const (
	KindOrderPlaced Kind = iota + 1
	KindConfirmed
	KindPreparing
	KindReady
	KindDelivered
	KindCancelled
	KindVerificationCode
)

var kindNames = map[Kind]string{
	KindOrderPlaced:      "order_placed",
	KindConfirmed:        "order_confirmed",
	KindPreparing:        "order_preparing",
	KindReady:            "order_ready",
	KindDelivered:        "order_delivered",
	KindCancelled:        "order_cancelled",
	KindVerificationCode: "verification_code",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Data is the template context. Fields unused by a kind stay empty.
type Data struct {
	CustomerName string
	OrderNumber  string
	Total        string
	Code         string
	ValidMinutes int
}

var templates = map[Kind]*template.Template{
	KindOrderPlaced: mustParse(KindOrderPlaced,
		`Hi {{.CustomerName}}, we received order {{.OrderNumber}} ({{.Total}}). Pay cash on delivery. We'll text you when it's confirmed.`),
	KindConfirmed: mustParse(KindConfirmed,
		`Order {{.OrderNumber}} is confirmed. We'll start preparing it shortly.`),
	KindPreparing: mustParse(KindPreparing,
		`Order {{.OrderNumber}} is being prepared.`),
	KindReady: mustParse(KindReady,
		`Order {{.OrderNumber}} is ready and will be on its way soon. Please have {{.Total}} ready.`),
	KindDelivered: mustParse(KindDelivered,
		`Order {{.OrderNumber}} was delivered. Thank you, {{.CustomerName}}!`),
	KindCancelled: mustParse(KindCancelled,
		`Order {{.OrderNumber}} has been cancelled.`),
	KindVerificationCode: mustParse(KindVerificationCode,
		`Your verification code is {{.Code}}. It expires in {{.ValidMinutes}} minutes. Do not share it.`),
}

func mustParse(k Kind, text string) *template.Template {
	return template.Must(template.New(k.String()).Option("missingkey=error").Parse(text))
}

// Render produces the SMS body for kind.
func Render(kind Kind, data Data) (string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	return buf.String(), nil
}

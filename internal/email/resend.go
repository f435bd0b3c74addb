package email

import (
	"fmt"
	"html"

	"github.com/resend/resend-go/v3"
)

// ResendEmailService implements EmailService using the Resend API.
type ResendEmailService struct {
	client      *resend.Client
	fromAddress string
}

// NewResendEmailService creates a new Resend email service.
// apiKey is the Resend API key.
// fromAddress is the sender email address (must be verified in Resend).
func NewResendEmailService(apiKey, fromAddress string) *ResendEmailService {
	return &ResendEmailService{
		client:      resend.NewClient(apiKey),
		fromAddress: fromAddress,
	}
}

// Send sends an email using the specified template via Resend.
func (r *ResendEmailService) Send(to, templateName string, data any) error {
	subject, body := r.renderTemplate(templateName, data)

	params := &resend.SendEmailRequest{
		From:    r.fromAddress,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}

	_, err := r.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}

	return nil
}

// renderTemplate renders the email template and returns subject and HTML body.
func (r *ResendEmailService) renderTemplate(templateName string, data any) (subject, body string) {
	switch templateName {
	case TemplateWelcome:
		d, _ := data.(WelcomeData)
		subject = "Welcome to Automation Exercise!"
		body = renderLayout("Account Created!", fmt.Sprintf(
			`<p>Hi %s,</p><p>Your new account has been successfully created. You can now take advantage of member privileges to enhance your online shopping experience with us.</p><p><a href="%s">Log in</a></p>`,
			html.EscapeString(d.Name), html.EscapeString(d.LoginURL)))
	case TemplateGoodbye:
		d, _ := data.(GoodbyeData)
		subject = "Your Automation Exercise account was deleted"
		body = renderLayout("Account Deleted!", fmt.Sprintf(
			`<p>Hi %s,</p><p>Your account has been permanently deleted!</p><p>You can create a new account to take advantage of member privileges to enhance your online shopping experience with us.</p>`,
			html.EscapeString(d.Name)))
	case TemplateSubscribed:
		d, _ := data.(SubscribedData)
		subject = "You are subscribed"
		body = renderLayout("Subscription", fmt.Sprintf(
			`<p>You have been successfully subscribed!</p><p><a href="%s">Visit the shop</a></p>`,
			html.EscapeString(d.ShopURL)))
	default:
		subject = "Message from Automation Exercise"
		body = fmt.Sprintf("<p>%s</p>", html.EscapeString(fmt.Sprintf("%+v", data)))
	}
	return subject, body
}

func renderLayout(heading, inner string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>%s</title>
</head>
<body style="font-family: Roboto, Arial, sans-serif; line-height: 1.6; color: #696763; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background: #FE980F; padding: 20px;">
        <h1 style="color: white; margin: 0; font-size: 22px;">AutomationExercise</h1>
    </div>
    <div style="padding: 20px; border: 1px solid #e0e0e0; border-top: none;">
        <h2 style="margin-top: 0;">%s</h2>
        %s
        <hr style="border: none; border-top: 1px solid #e0e0e0; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
    </div>
</body>
</html>`, heading, heading, inner)
}

package report

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Mailer delivers a report copy outside the chat platform. A nil Mailer
// on the engine disables the feature.
type Mailer interface {
	SendMonthlyReport(ctx context.Context, body string) error
}

// SESClient is the slice of the SES API the mailer needs.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer emails the consolidated monthly report to the configured
// admin addresses.
type SESMailer struct {
	client     SESClient
	sender     string
	recipients []string
}

func NewSESMailer(client SESClient, sender string, recipients []string) *SESMailer {
	return &SESMailer{client: client, sender: sender, recipients: recipients}
}

func (m *SESMailer) SendMonthlyReport(ctx context.Context, body string) error {
	tracer := otel.Tracer("ses-report-mailer")
	ctx, span := tracer.Start(ctx, "send_email", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	input := &ses.SendEmailInput{
		Source: aws.String(m.sender),
		Destination: &types.Destination{
			ToAddresses: m.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Attendance Bot Monthly Fine Report"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(body),
				},
			},
		},
	}

	_, err := m.client.SendEmail(ctx, input)
	return err
}

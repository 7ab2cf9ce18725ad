package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spegrid/execreview-backend/internal/pkg/errors"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
	"github.com/spegrid/execreview-backend/internal/platform/sendgrid"
)

// Mailer dispatches the rendered summary PDF to its recipients.
type Mailer interface {
	Send(ctx context.Context, pdfPath string, recipients []string) error
}

type sendgridMailer struct {
	log  *logger.Logger
	mail sendgrid.Client
}

func NewMailer(baseLog *logger.Logger, mail sendgrid.Client) Mailer {
	return &sendgridMailer{
		log:  baseLog.With("service", "Mailer"),
		mail: mail,
	}
}

func (m *sendgridMailer) Send(ctx context.Context, pdfPath string, recipients []string) error {
	if len(recipients) == 0 {
		return &errors.DeliveryError{Err: fmt.Errorf("no recipients")}
	}
	content, err := os.ReadFile(pdfPath)
	if err != nil {
		return &errors.DeliveryError{Err: fmt.Errorf("read attachment: %w", err)}
	}

	to := make([]sendgrid.EmailAddress, 0, len(recipients))
	for _, r := range recipients {
		to = append(to, sendgrid.EmailAddress{Email: r})
	}

	_, err = m.mail.Send(ctx, sendgrid.SendEmailRequest{
		To:      to,
		Subject: "Weekly Executive Summary",
		Text:    "Please find the executive summary attached.",
		Attachments: []sendgrid.Attachment{{
			Filename: filepath.Base(pdfPath),
			MIMEType: "application/pdf",
			Content:  content,
		}},
	})
	if err != nil {
		return &errors.DeliveryError{Err: err}
	}
	m.log.Info("Dispatched executive summary", "recipients", recipients, "attachment", filepath.Base(pdfPath))
	return nil
}

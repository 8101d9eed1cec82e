package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/F1H444/si-kalori-sub000/models"
	"github.com/F1H444/si-kalori-sub000/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ContactService struct {
	db     *gorm.DB
	mailer Mailer
	inbox  string
	log    logrus.FieldLogger
}

func NewContactService(db *gorm.DB, mailer Mailer, inbox string, log logrus.FieldLogger) *ContactService {
	return &ContactService{db: db, mailer: mailer, inbox: inbox, log: log}
}

// Submit stores the message first so nothing is lost when mail delivery fails.
func (s *ContactService) Submit(ctx context.Context, name, email, message string) (*models.ContactMessage, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	message = strings.TrimSpace(message)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	case !validEmail(email):
		return nil, fmt.Errorf("%w: invalid email format", ErrValidation)
	case message == "" || utf8.RuneCountInString(message) > 2000:
		return nil, fmt.Errorf("%w: message must be 1-2000 characters", ErrValidation)
	}

	msg := &models.ContactMessage{Name: name, Email: email, Message: message}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("save contact message: %w", err)
	}

	if s.mailer == nil || s.inbox == "" {
		return msg, nil
	}
	subject, body := utils.ContactEmail(name, email, message)
	if err := s.mailer.Send(ctx, s.inbox, subject, body); err != nil {
		s.log.WithError(err).WithField("contact_id", msg.ID).Warn("contact mail not delivered")
		return msg, nil
	}
	msg.Delivered = true
	if err := s.db.WithContext(ctx).Model(msg).Update("delivered", true).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

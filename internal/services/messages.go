package services

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/harentsoaR/hospital-api/internal/errs"
	"github.com/harentsoaR/hospital-api/internal/models"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

type MessageStore interface {
	Create(ctx context.Context, m *models.Message) error
	List(ctx context.Context) ([]models.Message, error)
}

type MessageInput struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	Message   string `json:"message" validate:"required,min=10"`
}

type MessageService struct {
	messages MessageStore
	policy   *bluemonday.Policy
	log      zerolog.Logger
	now      func() time.Time
}

func NewMessageService(messages MessageStore, log zerolog.Logger) *MessageService {
	return &MessageService{
		messages: messages,
		policy:   bluemonday.StrictPolicy(),
		log:      log,
		now:      time.Now,
	}
}

// maxSanitizePasses bounds how many layers of entity encoding plain peels off.
const maxSanitizePasses = 8

// plain strips all markup, including markup hidden behind entity encoding,
// and returns unescaped text. Decoding and sanitizing repeat until the value
// is stable, so the final unescape cannot produce a tag. A value that is
// still changing after maxSanitizePasses is kept in its escaped form.
func (s *MessageService) plain(v string) string {
	clean := s.policy.Sanitize(v)
	for i := 0; i < maxSanitizePasses; i++ {
		next := s.policy.Sanitize(html.UnescapeString(clean))
		if next == clean {
			return strings.TrimSpace(html.UnescapeString(clean))
		}
		clean = next
	}
	return strings.TrimSpace(clean)
}

func (s *MessageService) Send(ctx context.Context, in MessageInput) (*models.Message, error) {
	in.FirstName = s.plain(in.FirstName)
	in.LastName = s.plain(in.LastName)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Message = s.plain(in.Message)
	if err := validateInput("Please fill all required fields", &in); err != nil {
		return nil, err
	}

	m := &models.Message{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		Message:   in.Message,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, errs.Internal(err, "Failed to send message")
	}
	s.log.Info().Str("message_id", m.ID.Hex()).Msg("message received")
	return m, nil
}

// List returns every message, newest first.
func (s *MessageService) List(ctx context.Context) ([]models.Message, error) {
	msgs, err := s.messages.List(ctx)
	if err != nil {
		return nil, errs.Internal(err, "Failed to retrieve messages")
	}
	return msgs, nil
}

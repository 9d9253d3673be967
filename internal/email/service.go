package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GwennLsk/BackCantineAston/internal/logger"
	"github.com/GwennLsk/BackCantineAston/internal/metrics"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxTries       = 3

	TypeWelcome         = "welcome"
	TypeAccountClosed   = "account_closed"
	TypeBalanceCredited = "balance_credited"
)

type EmailJob struct {
	Type    string    `json:"type"`
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// Service queues account emails in Redis and delivers them over SMTP
// from a background worker started with Start.
type Service struct {
	redis    *redis.Client
	from     string
	fromName string
	smtpHost string
	smtpPort string
	smtpUser string
	smtpPass string

	send        func(EmailJob) error
	retryDelay  time.Duration
	pollTimeout time.Duration
	gaugeEvery  time.Duration
}

func New(fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass, redisAddr string) *Service {
	return newService(redis.NewClient(&redis.Options{
		Addr: redisAddr,
	}), fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass)
}

func newService(rdb *redis.Client, fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass string) *Service {
	s := &Service{
		redis:       rdb,
		from:        fromEmail,
		fromName:    fromName,
		smtpHost:    smtpHost,
		smtpPort:    smtpPort,
		smtpUser:    smtpUser,
		smtpPass:    smtpPass,
		retryDelay:  5 * time.Second,
		pollTimeout: 2 * time.Second,
		gaugeEvery:  15 * time.Second,
	}
	s.send = s.sendNow
	return s
}

func (s *Service) Send(ctx context.Context, emailType, to, name, subject, body string) error {
	job := EmailJob{
		Type:    emailType,
		To:      to,
		Name:    name,
		Subject: subject,
		Body:    body,
		Tries:   0,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal email job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to queue email to %s: %v", to, err)
		metrics.RecordEmail(emailType, "queue_failed")
		return err
	}

	metrics.RecordEmail(emailType, "queued")
	logger.Infof("Email queued: %s to %s", subject, to)
	return nil
}

// Start consumes the queue until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	logger.Info("Email service started")

	ticker := time.NewTicker(s.gaugeEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Email service stopped")
			return
		case <-ticker.C:
			s.QueueLength(ctx)
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, s.pollTimeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.WithError(err).Error("Failed to read email queue", "backoff", s.retryDelay)
		select {
		case <-ctx.Done():
		case <-time.After(s.retryDelay):
		}
		return
	}

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad email data: %v", err)
		return
	}

	job.Tries++
	logger.Debugf("Sending email to %s (attempt %d)", job.To, job.Tries)
	if err := s.send(job); err != nil {
		logger.Errorf("Failed to send email to %s: %v", job.To, err)

		if job.Tries < maxTries {
			s.retry(ctx, job)
		} else {
			logger.Errorf("Email to %s failed after %d attempts", job.To, maxTries)
			metrics.RecordEmail(job.Type, "failed")
			s.saveFailed(job, err)
		}
		return
	}

	metrics.RecordEmail(job.Type, "sent")
	logger.Infof("Email sent successfully to %s", job.To)
}

func (s *Service) retry(ctx context.Context, job EmailJob) {
	select {
	case <-ctx.Done():
	case <-time.After(s.retryDelay):
	}

	data, _ := json.Marshal(job)
	if err := s.redis.LPush(context.Background(), queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to requeue email to %s: %v", job.To, err)
		return
	}
	metrics.RecordEmail(job.Type, "retried")
	logger.Infof("Retrying email to %s (attempt %d)", job.To, job.Tries+1)
}

// buildMessage renders job as an RFC 5322 message. Non-ASCII header text is
// RFC 2047 encoded.
func (s *Service) buildMessage(job EmailJob) string {
	message := fmt.Sprintf("From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", s.fromName), s.from)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", job.Subject))
	message += "MIME-Version: 1.0\r\n"
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n" + job.Body
	return message
}

func (s *Service) sendNow(job EmailJob) error {
	message := s.buildMessage(job)

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(job EmailJob, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, data)
	logger.Errorf("Email moved to failed queue: %s", job.To)
}

// QueueLength reports the number of pending jobs and publishes it as a gauge.
func (s *Service) QueueLength(ctx context.Context) int64 {
	length, err := s.redis.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0
	}
	metrics.EmailQueueLength.Set(float64(length))
	return length
}

func (s *Service) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func (s *Service) Close() error {
	return s.redis.Close()
}

func (s *Service) SendWelcome(ctx context.Context, email, name string) error {
	subject := "Bienvenue à la Cantine Aston"
	body := fmt.Sprintf(`Bonjour %s,

Votre compte cantine est prêt.
Vous pouvez dès maintenant passer vos commandes.

Bon appétit !

- L'équipe Cantine Aston`, name)

	return s.Send(ctx, TypeWelcome, email, name, subject, body)
}

func (s *Service) SendAccountClosed(ctx context.Context, email, name string) error {
	subject := "Votre compte cantine a été supprimé"
	body := fmt.Sprintf(`Bonjour %s,

Votre compte cantine vient d'être supprimé.
Si vous n'êtes pas à l'origine de cette demande, contactez l'accueil.

- L'équipe Cantine Aston`, name)

	return s.Send(ctx, TypeAccountClosed, email, name, subject, body)
}

func (s *Service) SendBalanceCredited(ctx context.Context, email, name string, amount, balance int64) error {
	subject := "Votre solde a été crédité"
	body := fmt.Sprintf(`Bonjour %s,

Votre compte a été crédité de %s.
Nouveau solde : %s

- L'équipe Cantine Aston`, name, FormatEuros(amount), FormatEuros(balance))

	return s.Send(ctx, TypeBalanceCredited, email, name, subject, body)
}

// FormatEuros renders an amount in cents, e.g. 1050 as "10,50 €".
func FormatEuros(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d,%02d €", sign, cents/100, cents%100)
}

// Nop satisfies the account notifier when email delivery is disabled.
type Nop struct{}

func (Nop) SendWelcome(context.Context, string, string) error       { return nil }
func (Nop) SendAccountClosed(context.Context, string, string) error { return nil }
func (Nop) SendBalanceCredited(context.Context, string, string, int64, int64) error {
	return nil
}

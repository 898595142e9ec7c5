package services

import (
	"bytes"
	"html/template"
	"strconv"
	"sync"

	"podnest/internal/config"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// mailSender is satisfied by *gomail.Dialer.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type MailService struct {
	from    string
	siteURL string
	sender  mailSender
	log     *zap.Logger
	wg      sync.WaitGroup
}

var invitationTmpl = template.Must(template.New("invitation").Parse(`<p>{{.Inviter}} invited you to the pod <strong>{{.PodName}}</strong> on Podnest.</p>
{{if .Description}}<blockquote>{{.Description}}</blockquote>{{end}}
<p><a href="{{.Link}}">Open the pod</a>. Sign in with this email address ({{.Email}}) to see it.</p>`))

// NewMailService returns a disabled service when the SMTP settings are incomplete.
func NewMailService(cfg config.SMTPConfig, siteURL string, log *zap.Logger) *MailService {
	s := &MailService{from: cfg.From, siteURL: siteURL, log: log}
	if !cfg.Enabled() {
		log.Warn("mail service disabled: missing SMTP settings")
		return s
	}
	s.sender = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return s
}

func (s *MailService) Enabled() bool { return s.sender != nil }

type Invitation struct {
	Email       string
	Inviter     string
	PodID       uint
	PodName     string
	Description string
}

func (s *MailService) invitationMessage(inv Invitation) (*gomail.Message, error) {
	var body bytes.Buffer
	err := invitationTmpl.Execute(&body, map[string]interface{}{
		"Inviter":     inv.Inviter,
		"PodName":     inv.PodName,
		"Description": inv.Description,
		"Email":       inv.Email,
		"Link":        s.siteURL + "/pods/" + strconv.FormatUint(uint64(inv.PodID), 10),
	})
	if err != nil {
		return nil, errors.Wrap(err, "render invitation")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.from, "Podnest"))
	m.SetHeader("To", inv.Email)
	m.SetHeader("Subject", inv.Inviter+" shared the pod \""+inv.PodName+"\" with you")
	m.SetBody("text/html", body.String())
	return m, nil
}

// SendPodInvitation 异步发送邀请邮件，失败只记录日志
func (s *MailService) SendPodInvitation(inv Invitation) {
	if !s.Enabled() {
		return
	}
	m, err := s.invitationMessage(inv)
	if err != nil {
		s.log.Error("render invitation failed", zap.Error(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.sender.DialAndSend(m); err != nil {
			s.log.Error("send invitation failed", zap.String("to", inv.Email), zap.Uint("pod_id", inv.PodID), zap.Error(err))
			return
		}
		s.log.Info("invitation sent", zap.String("to", inv.Email), zap.Uint("pod_id", inv.PodID))
	}()
}

// Wait blocks until in-flight deliveries finish.
func (s *MailService) Wait() {
	s.wg.Wait()
}

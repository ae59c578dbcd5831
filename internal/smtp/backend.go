// Package smtp receives mail over SMTP and hands it to the delivery service.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/welldanyogia/webrana-mailcore/internal/config"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
	"github.com/welldanyogia/webrana-mailcore/internal/storage"
)

// Security limits
const (
	DefaultMaxMessageSize  = 25 * 1024 * 1024 // 25 MB
	DefaultMaxRecipients   = 100
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultMaxLineLength   = 2000
	DefaultDeliveryTimeout = 2 * time.Minute
)

// MailboxResolver finds the mailbox receiving mail for an address
type MailboxResolver interface {
	ResolveAddress(ctx context.Context, address string) (*models.Mailbox, error)
}

// Backend implements the go-smtp Backend interface
type Backend struct {
	delivery        services.DeliveryService
	mailboxes       MailboxResolver
	fileStorage     storage.FileStorage
	deliveryTimeout time.Duration
	logger          *slog.Logger
}

// BackendConfig holds configuration for the SMTP backend
type BackendConfig struct {
	Delivery        services.DeliveryService
	Mailboxes       MailboxResolver
	FileStorage     storage.FileStorage
	DeliveryTimeout time.Duration
	Logger          *slog.Logger
}

// NewBackend creates a new SMTP backend
func NewBackend(cfg *BackendConfig) *Backend {
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &Backend{
		delivery:        cfg.Delivery,
		mailboxes:       cfg.Mailboxes,
		fileStorage:     cfg.FileStorage,
		deliveryTimeout: timeout,
		logger:          logger.OrDefault(cfg.Logger),
	}
}

// NewSession creates a new SMTP session
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remote := ""
	if c != nil && c.Conn() != nil {
		remote = c.Conn().RemoteAddr().String()
	}
	b.logger.Info("new SMTP connection", slog.String("remote_addr", remote))
	return NewSession(b), nil
}

// ServerConfig holds security configuration for the SMTP server
type ServerConfig struct {
	Addr           string
	Domain         string
	MaxMessageSize int64
	MaxRecipients  int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowInsecure  bool
	TLSConfig      *tls.Config
}

// ServerConfigFrom builds the server settings from application config,
// loading the TLS key pair when one is configured.
func ServerConfigFrom(cfg *config.Config) (*ServerConfig, error) {
	sc := &ServerConfig{
		Addr:           cfg.SMTPAddr,
		Domain:         cfg.SMTPDomain,
		MaxMessageSize: cfg.SMTPMaxMessageBytes,
		MaxRecipients:  cfg.SMTPMaxRecipients,
		AllowInsecure:  cfg.SMTPAllowInsecure,
	}

	if cfg.SMTPTLSCert != "" && cfg.SMTPTLSKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.SMTPTLSCert, cfg.SMTPTLSKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load SMTP TLS key pair: %w", err)
		}
		sc.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return sc, nil
}

// NewSecureServer creates a new SMTP server with security settings
func NewSecureServer(backend *Backend, cfg *ServerConfig) *smtp.Server {
	s := smtp.NewServer(backend)

	s.Addr = cfg.Addr
	s.Domain = cfg.Domain

	s.MaxMessageBytes = DefaultMaxMessageSize
	if cfg.MaxMessageSize > 0 {
		s.MaxMessageBytes = cfg.MaxMessageSize
	}

	s.MaxRecipients = DefaultMaxRecipients
	if cfg.MaxRecipients > 0 {
		s.MaxRecipients = cfg.MaxRecipients
	}

	s.ReadTimeout = DefaultReadTimeout
	if cfg.ReadTimeout > 0 {
		s.ReadTimeout = cfg.ReadTimeout
	}

	s.WriteTimeout = DefaultWriteTimeout
	if cfg.WriteTimeout > 0 {
		s.WriteTimeout = cfg.WriteTimeout
	}

	// Disable insecure authentication by default
	s.AllowInsecureAuth = cfg.AllowInsecure

	if cfg.TLSConfig != nil {
		s.TLSConfig = cfg.TLSConfig
	}

	// Set max line length to prevent buffer overflow attacks
	s.MaxLineLength = DefaultMaxLineLength

	return s
}

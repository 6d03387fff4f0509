package notify

import (
	"github.com/eoffice/docflow/logger"
	"go.uber.org/zap"
)

// Mailer is the outbound delivery transport. The reference pair ties a
// message back to the record it is about.
type Mailer interface {
	Send(recipients []string, subject string, body string, referenceType string, referenceId string) error
}

// LogMailer writes messages to the log instead of sending them. It is the
// default transport for deployments without an outbound gateway.
type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) Send(recipients []string, subject string, body string, referenceType string, referenceId string) error {
	logger.Info("notification",
		zap.Strings("recipients", recipients),
		zap.String("subject", subject),
		zap.String("referenceType", referenceType),
		zap.String("referenceId", referenceId))
	return nil
}

package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"jigtrack/repository/models"

	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// WebhookNotifier posts validation outcomes to an external endpoint, usually
// the shop-floor andon bridge. Delivery is best-effort; the caller treats any
// returned error as log-only.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger cmtlog.Logger
}

// NewWebhookNotifier builds a notifier for the given endpoint.
func NewWebhookNotifier(url string, logger cmtlog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

type outcomeNotice struct {
	Technician string    `json:"technician"`
	EmployeeNo string    `json:"employee_no"`
	Shift      string    `json:"shift"`
	Outcome    string    `json:"outcome"`
	SentAt     time.Time `json:"sent_at"`
}

// SendNotice delivers one outcome notice.
func (n *WebhookNotifier) SendNotice(tech *models.Technician, outcome string) error {
	notice := outcomeNotice{
		Outcome: outcome,
		SentAt:  time.Now(),
	}
	if tech != nil {
		notice.Technician = tech.Name
		notice.EmployeeNo = tech.EmployeeNo
		notice.Shift = tech.CurrentShift
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("deliver outcome notice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("outcome notice rejected: %s", resp.Status)
	}
	n.logger.Info("Outcome notice delivered", "outcome", outcome, "status", resp.StatusCode)
	return nil
}

package mail

import (
	"context"
	"fmt"
	"strings"

	"hotelbook/internal/config"
	"hotelbook/internal/models"

	"gopkg.in/gomail.v2"
)

// Sender delivers a composed message. *gomail.Dialer implements it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	sender Sender
	from   string
}

func NewMailer(cfg config.MailConfig) *Mailer {
	return &Mailer{
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func NewMailerWithSender(sender Sender, from string) *Mailer {
	return &Mailer{sender: sender, from: from}
}

// SendBookingConfirmation mails the guest a summary of the admitted booking.
// The context only guards against sending after cancellation; gomail dials
// without one.
func (m *Mailer) SendBookingConfirmation(ctx context.Context, notice *models.BookingNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if notice == nil || notice.Email == "" {
		return fmt.Errorf("confirmation recipient is missing")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", notice.Email)
	msg.SetHeader("Subject", fmt.Sprintf("Booking #%d confirmed", notice.Booking.ID))
	msg.SetBody("text/plain", confirmationText(notice))

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("send confirmation for booking %d: %w", notice.Booking.ID, err)
	}
	return nil
}

func confirmationText(n *models.BookingNotice) string {
	b := n.Booking
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your booking #%d is confirmed.\n\n", b.ID)
	fmt.Fprintf(&sb, "Hotel: %s\n", n.HotelName)
	fmt.Fprintf(&sb, "Room: %s\n", n.RoomName)
	fmt.Fprintf(&sb, "Check-in: %s\n", b.DateFrom.Format(models.DateLayout))
	fmt.Fprintf(&sb, "Check-out: %s\n", b.DateTo.Format(models.DateLayout))
	fmt.Fprintf(&sb, "Nights: %d\n", b.TotalDays())
	fmt.Fprintf(&sb, "Price per night: %d\n", b.Price)
	fmt.Fprintf(&sb, "Total: %d\n", b.TotalCost())
	return sb.String()
}

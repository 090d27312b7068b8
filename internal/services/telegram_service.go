package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/example/bloomstem/internal/models"
)

// ErrMessengerDisabled is returned when no bot token is configured.
var ErrMessengerDisabled = errors.New("telegram bot token not configured")

// Messenger sends a text message to a chat.
type Messenger interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// TelegramService sends messages through the Telegram Bot API.
type TelegramService struct {
	baseURL  string
	botToken string
	client   *http.Client
}

// NewTelegramService creates a new TelegramService. baseURL is usually https://api.telegram.org.
func NewTelegramService(baseURL, botToken string) *TelegramService {
	return &TelegramService{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage sends an HTML formatted message to chatID.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		return ErrMessengerDisabled
	}

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result telegramResponse
	_ = json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode != http.StatusOK || !result.OK {
		if result.Description != "" {
			return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, result.Description)
		}
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// FormatPrice formats an amount with thousand separators and the ruble sign.
func FormatPrice(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	str := fmt.Sprintf("%d", amount)

	var result strings.Builder
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(" ")
		}
		result.WriteRune(digit)
	}

	return sign + result.String() + " ₽"
}

func orderCreatedStaffText(order models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🌸 НОВЫЙ ЗАКАЗ %s</b>\n", html.EscapeString(order.Number))
	fmt.Fprintf(&b, "<b>👤 Клиент:</b> %s\n", html.EscapeString(order.Contact.Name))
	fmt.Fprintf(&b, "<b>📞 Телефон:</b> %s\n", html.EscapeString(order.Contact.Phone))
	fmt.Fprintf(&b, "<b>📍 Адрес:</b> %s\n", html.EscapeString(addressLine(order.Delivery)))
	fmt.Fprintf(&b, "<b>🕒 Доставка:</b> %s, %s\n", html.EscapeString(order.Delivery.Date), html.EscapeString(order.Delivery.TimeSlot))
	if !order.Recipient.SameAsOrderer {
		fmt.Fprintf(&b, "<b>🎁 Получатель:</b> %s, %s\n", html.EscapeString(order.Recipient.Name), html.EscapeString(order.Recipient.Phone))
	}
	if order.Delivery.Comment != "" {
		fmt.Fprintf(&b, "<b>💬 Комментарий:</b> %s\n", html.EscapeString(order.Delivery.Comment))
	}
	b.WriteString("<b>📦 Состав:</b>\n")
	for i, item := range order.Items {
		fmt.Fprintf(&b, "%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Name),
			item.Quantity,
			FormatPrice(item.UnitPrice),
			FormatPrice(item.LineTotal()),
		)
	}
	if order.Amounts.LoyaltyDiscountApplied > 0 {
		fmt.Fprintf(&b, "<b>🎟 Списано баллов:</b> %d\n", order.Amounts.LoyaltyDiscountApplied)
	}
	fmt.Fprintf(&b, "<b>💰 Итого:</b> %s\n", FormatPrice(order.Amounts.Total))
	b.WriteString("━━━━━━━━━━━━━━━━━━")
	return b.String()
}

func orderCreatedCustomerText(order models.Order) string {
	return fmt.Sprintf(`<b>Спасибо за заказ!</b>
Заказ <b>%s</b> принят.
Доставка: %s, %s
Сумма: <b>%s</b>
Начислим баллов: %d`,
		html.EscapeString(order.Number),
		html.EscapeString(order.Delivery.Date),
		html.EscapeString(order.Delivery.TimeSlot),
		FormatPrice(order.Amounts.Total),
		order.Amounts.PointsEarned,
	)
}

func statusChangedStaffText(order models.Order, old models.Status) string {
	return fmt.Sprintf("<b>🔄 Заказ %s</b>\n%s → <b>%s</b>",
		html.EscapeString(order.Number),
		old.Label(),
		order.Status.Label(),
	)
}

func statusChangedCustomerText(order models.Order) string {
	return fmt.Sprintf("Статус заказа <b>%s</b>: <b>%s</b>",
		html.EscapeString(order.Number),
		order.Status.Label(),
	)
}

func addressLine(d models.Delivery) string {
	parts := []string{d.City, d.Street, d.House}
	if d.Unit != "" {
		parts = append(parts, "кв. "+d.Unit)
	}
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/eshop/internal/models"
)

// OrderNotifier receives committed order events.
type OrderNotifier interface {
	NotifyNewOrder(order *models.Order) error
	NotifyStatusChange(order *models.Order, previous string) error
}

// TelegramService posts order notices to an admin chat through the Bot API.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether both the token and the admin chat are configured.
func (s *TelegramService) Enabled() bool {
	return s.botToken != "" && s.adminChatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends an HTML message to chatID.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// OrderTotal sums the lines of a loaded order.
func OrderTotal(order *models.Order) decimal.Decimal {
	total := decimal.Zero
	for _, line := range order.Items {
		total = total.Add(line.LineTotal())
	}
	return total
}

// FormatPrice renders an amount with two decimals and thousand separators.
func FormatPrice(amount decimal.Decimal) string {
	str := amount.StringFixed(2)
	intPart, fraction := str, ""
	if dot := strings.IndexByte(str, '.'); dot >= 0 {
		intPart, fraction = str[:dot], str[dot:]
	}

	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}

	var result strings.Builder
	length := len(intPart)
	for i, digit := range intPart {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	return sign + result.String() + fraction
}

var paymentTypeNames = map[string]string{
	models.PaymentUponReceipt: "Upon receipt",
	models.PaymentTransfer:    "Bank transfer",
	models.PaymentOnline:      "Online",
}

var orderStatusNames = map[string]string{
	models.OrderStatusCreated:           "Created",
	models.OrderStatusInProgress:        "In progress",
	models.OrderStatusWaitingForPayment: "Waiting for payment",
	models.OrderStatusPaid:              "Paid",
	models.OrderStatusWaitingForPickup:  "Waiting for pickup",
	models.OrderStatusDelivery:          "Delivery",
	models.OrderStatusFinished:          "Finished",
	models.OrderStatusCancelled:         "Cancelled",
}

// NotifyNewOrder sends a summary of a freshly created order to the admin chat.
func (s *TelegramService) NotifyNewOrder(order *models.Order) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range order.Items {
		itemsList.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.ItemName),
			item.Quantity,
			FormatPrice(item.Price),
			FormatPrice(item.LineTotal()),
		))
	}

	customer, phone := "-", "-"
	if order.CustomerData != nil {
		customer = html.EscapeString(order.CustomerData.Name)
		phone = html.EscapeString(order.CustomerData.PhoneNumber)
	}

	fulfillment := "Pickup"
	if order.Delivery != nil {
		fulfillment = "Delivery: " + html.EscapeString(order.Delivery.Address)
	} else if order.PickupShop != nil {
		fulfillment = "Pickup: " + html.EscapeString(order.PickupShop.Name)
	}

	message := fmt.Sprintf(`<b>New order</b>
<b>Order:</b> %s
<b>Customer:</b> %s
<b>Phone:</b> %s
<b>Items:</b>
%s
<b>Total:</b> %s
<b>Payment:</b> %s
<b>Fulfillment:</b> %s`,
		order.ID,
		customer,
		phone,
		itemsList.String(),
		FormatPrice(OrderTotal(order)),
		paymentTypeNames[order.PaymentType],
		fulfillment,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}

// NotifyStatusChange reports an order status transition to the admin chat.
func (s *TelegramService) NotifyStatusChange(order *models.Order, previous string) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf("<b>Order %s</b>\n%s → %s",
		order.ID,
		orderStatusNames[previous],
		orderStatusNames[order.Status],
	)
	return s.SendToAdmin(message)
}

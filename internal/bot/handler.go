package bot

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/eliseohh/vendobot/internal/catalog"
	"github.com/eliseohh/vendobot/internal/ledger"
	tele "gopkg.in/telebot.v3"
)

// buyUnique is the callback unique for purchase buttons. It is registered
// once at startup, so buttons on panels sent before a restart keep working.
const buyUnique = "buy"

type Bot struct {
	api *tele.Bot
	svc *catalog.Service
	db  *ledger.DB
	cfg Config

	// send is api.Send, swappable in tests.
	send func(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Config struct {
	Token      string
	OperatorID int64
}

func New(cfg Config, svc *catalog.Service, db *ledger.DB) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot := &Bot{api: b, svc: svc, db: db, cfg: cfg, send: b.Send}
	bot.register()
	return bot, nil
}

func (b *Bot) Start() {
	fmt.Printf("Bot started: %s\n", b.api.Me.Username)
	b.api.Start()
}

func (b *Bot) register() {
	// Operator commands
	b.api.Handle("/additem", b.handleAddItem)
	b.api.Handle("/delitem", b.handleDelItem)
	b.api.Handle("/setchannel", b.handleSetChannel)
	b.api.Handle("/history", b.handleHistory)

	// Open commands
	b.api.Handle("/panel", b.handlePanel)
	b.api.Handle("/status", b.handleStatus)

	// Purchase buttons, by unique id so old panels stay clickable
	b.api.Handle(&tele.Btn{Unique: buyUnique}, b.handleBuy)
}

// /additem <商品名> | <中身> | <在庫数>   (在庫数 0 = 無限)
func (b *Bot) handleAddItem(c tele.Context) error {
	parts := strings.Split(c.Message().Payload, "|")
	if len(parts) != 3 {
		return c.Send("Usage: /additem <商品名> | <中身> | <在庫数>")
	}

	name := strings.TrimSpace(parts[0])
	content := strings.TrimSpace(parts[1])
	stock, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || name == "" {
		return c.Send("Usage: /additem <商品名> | <中身> | <在庫数>")
	}

	if err := b.svc.AddItem(c.Sender().ID, name, content, stock); err != nil {
		return b.sendError(c, err)
	}
	return c.Send(fmt.Sprintf("✅ %s を追加しました。", name))
}

// /delitem <商品名>
func (b *Bot) handleDelItem(c tele.Context) error {
	name := strings.TrimSpace(c.Message().Payload)
	if name == "" {
		return c.Send("Usage: /delitem <商品名>")
	}

	if err := b.svc.DeleteItem(c.Sender().ID, name); err != nil {
		return b.sendError(c, err)
	}
	return c.Send(fmt.Sprintf("🗑 %s を削除しました。", name))
}

// /setchannel [chat id], empty payload targets the current chat.
func (b *Bot) handleSetChannel(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)

	var chatID int64
	if payload == "" {
		chatID = c.Chat().ID
	} else {
		id, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return c.Send("Usage: /setchannel [chat id]")
		}
		chatID = id
	}

	if err := b.svc.SetChannel(c.Sender().ID, chatID); err != nil {
		return b.sendError(c, err)
	}
	return c.Send(fmt.Sprintf("✅ 実績チャンネルを %d に設定しました。", chatID))
}

// /panel <タイトル> | <概要>
func (b *Bot) handlePanel(c tele.Context) error {
	parts := strings.SplitN(c.Message().Payload, "|", 2)
	title := strings.TrimSpace(parts[0])
	if title == "" {
		return c.Send("Usage: /panel <タイトル> | <概要>")
	}
	desc := ""
	if len(parts) == 2 {
		desc = strings.TrimSpace(parts[1])
	}

	text := title
	if desc != "" {
		text += "\n" + desc
	}
	return c.Send(text, panelMarkup(b.svc.Items()))
}

func (b *Bot) handleStatus(c tele.Context) error {
	receipts, err := b.db.Count()
	if err != nil {
		receipts = 0
	}
	return c.Send(fmt.Sprintf("商品数: %d　購入数: %d", len(b.svc.Items()), receipts))
}

// /history [n]
func (b *Bot) handleHistory(c tele.Context) error {
	if c.Sender().ID != b.cfg.OperatorID {
		return c.Send("⛔ 権限がありません。")
	}

	n := 10
	if payload := strings.TrimSpace(c.Message().Payload); payload != "" {
		if v, err := strconv.Atoi(payload); err == nil && v > 0 {
			n = v
		}
	}

	receipts, err := b.db.Recent(n)
	if err != nil {
		return c.Send(fmt.Sprintf("Ledger Error: %v", err))
	}
	if len(receipts) == 0 {
		return c.Send("購入履歴はありません。")
	}

	var sb strings.Builder
	sb.WriteString("🧾 購入履歴\n")
	for _, r := range receipts {
		at := r.At.In(jst)
		fmt.Fprintf(&sb, "%s￤%s￤%s\n", at.Format("2006-01-02 15:04:05"), r.ItemName, r.BuyerName)
	}
	return c.Send(sb.String())
}

// Purchase button callback. Ordering matters: stock is decremented and
// persisted before delivery, and a failed delivery is not refunded.
func (b *Bot) handleBuy(c tele.Context) error {
	name := strings.TrimSpace(c.Data())

	content, err := b.svc.Purchase(name)
	switch {
	case errors.Is(err, catalog.ErrItemNotFound):
		return c.Respond(&tele.CallbackResponse{Text: "商品が見つかりません。"})
	case errors.Is(err, catalog.ErrOutOfStock):
		return c.Respond(&tele.CallbackResponse{Text: "在庫切れです。"})
	case err != nil:
		log.Printf("purchase %q: %v", name, err)
		return c.Respond(&tele.CallbackResponse{Text: "エラーが発生しました。"})
	}

	buyer := c.Sender()
	if _, err := b.send(buyer, fmt.Sprintf("🎁 %s の中身：\n%s", name, content)); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "DM送信に失敗しました。", ShowAlert: true})
	}

	if err := c.Respond(&tele.CallbackResponse{Text: "✅ 購入が完了しました。DMを確認してください。"}); err != nil {
		log.Printf("callback ack: %v", err)
	}

	b.announce(name, buyer, chatTitle(c.Chat()))
	b.record(name, buyer, chatTitle(c.Chat()))
	return nil
}

// announce posts the achievement message, best-effort. An unset channel or
// a failed send never reaches the purchaser.
func (b *Bot) announce(itemName string, buyer *tele.User, chatName string) {
	chID, ok := b.svc.Channel()
	if !ok {
		return
	}

	if _, err := b.send(tele.ChatID(chID), achievementText(itemName, buyer, chatName, time.Now())); err != nil {
		log.Printf("achievement send: %v", err)
	}
}

func (b *Bot) record(itemName string, buyer *tele.User, chatName string) {
	_, err := b.db.Record(ledger.Receipt{
		ItemName:  itemName,
		BuyerID:   buyer.ID,
		BuyerName: displayName(buyer),
		ChatTitle: chatName,
	})
	if err != nil {
		log.Printf("ledger record: %v", err)
	}
}

func (b *Bot) sendError(c tele.Context, err error) error {
	switch {
	case errors.Is(err, catalog.ErrPermissionDenied):
		return c.Send("⛔ 権限がありません。")
	case errors.Is(err, catalog.ErrItemNotFound):
		return c.Send("その商品は存在しません。")
	default:
		return c.Send(fmt.Sprintf("Error: %v", err))
	}
}

// panelMarkup renders one inline button per catalog entry. The entries come
// in sorted, so the same catalog always yields the same keyboard.
func panelMarkup(entries []catalog.Entry) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, markup.Row(markup.Data(e.Name, buyUnique, e.Name)))
	}
	markup.Inline(rows...)
	return markup
}

func achievementText(itemName string, buyer *tele.User, chatName string, now time.Time) string {
	now = now.In(jst)
	return fmt.Sprintf(
		"📦 商品名: %s\n🧾 購入数: 1個\n🙋 購入者: %s\n🌐 購入サーバー: %s\n%s（%s）%s",
		itemName, displayName(buyer), chatName,
		now.Format("2006-01-02"), weekdayShortJP[now.Weekday()], now.Format("15:04:05"),
	)
}

func displayName(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func chatTitle(ch *tele.Chat) string {
	if ch == nil {
		return ""
	}
	if ch.Title != "" {
		return ch.Title
	}
	return ch.FirstName
}

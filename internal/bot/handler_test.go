package bot

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eliseohh/vendobot/internal/catalog"
	"github.com/eliseohh/vendobot/internal/ledger"
	"github.com/eliseohh/vendobot/internal/store"
	tele "gopkg.in/telebot.v3"
)

const operatorID = int64(1000)

// MockContext definition for internal use
type MockContext struct {
	tele.Context
	PayloadVal string
	DataVal    string
	User       *tele.User
	ChatVal    *tele.Chat
	SentMsg    interface{}
	Response   *tele.CallbackResponse
}

func (m *MockContext) Message() *tele.Message {
	return &tele.Message{Payload: m.PayloadVal}
}
func (m *MockContext) Send(what interface{}, opts ...interface{}) error {
	m.SentMsg = what
	return nil
}
func (m *MockContext) Sender() *tele.User { return m.User }
func (m *MockContext) Chat() *tele.Chat   { return m.ChatVal }
func (m *MockContext) Data() string       { return m.DataVal }
func (m *MockContext) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) > 0 {
		m.Response = resp[0]
	}
	return nil
}

type sentItem struct {
	To   tele.Recipient
	What interface{}
}

func newTestBot(t *testing.T) (*Bot, *[]sentItem) {
	t.Helper()

	dir := t.TempDir()
	svc := catalog.NewService(store.NewDocument(), filepath.Join(dir, "items.json"), operatorID)
	db, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	sent := &[]sentItem{}
	b := &Bot{
		svc: svc,
		db:  db,
		cfg: Config{OperatorID: operatorID},
		send: func(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
			*sent = append(*sent, sentItem{To: to, What: what})
			return &tele.Message{}, nil
		},
	}
	return b, sent
}

func operatorCtx(payload string) *MockContext {
	return &MockContext{
		PayloadVal: payload,
		User:       &tele.User{ID: operatorID, Username: "op"},
		ChatVal:    &tele.Chat{ID: 555, Title: "Shop"},
	}
}

func strangerCtx(payload string) *MockContext {
	return &MockContext{
		PayloadVal: payload,
		User:       &tele.User{ID: 2000, Username: "someone"},
		ChatVal:    &tele.Chat{ID: 555, Title: "Shop"},
	}
}

func TestAddItemCommand(t *testing.T) {
	b, _ := newTestBot(t)

	t.Run("Operator Success", func(t *testing.T) {
		ctx := operatorCtx("Gift Card | CODE123 | 1")
		if err := b.handleAddItem(ctx); err != nil {
			t.Fatal(err)
		}

		msg := ctx.SentMsg.(string)
		if !strings.Contains(msg, "✅") {
			t.Errorf("expected success msg, got: %s", msg)
		}

		it, ok := b.svc.Get("Gift Card")
		if !ok || it.Content != "CODE123" || it.Stock != 1 {
			t.Errorf("item not stored: %+v", it)
		}
	})

	t.Run("Stranger Denied", func(t *testing.T) {
		ctx := strangerCtx("Hack | x | 1")
		if err := b.handleAddItem(ctx); err != nil {
			t.Fatal(err)
		}

		msg := ctx.SentMsg.(string)
		if !strings.Contains(msg, "⛔") {
			t.Errorf("expected denial, got: %s", msg)
		}
		if _, ok := b.svc.Get("Hack"); ok {
			t.Error("denied caller mutated catalog")
		}
	})

	t.Run("Bad Payload", func(t *testing.T) {
		ctx := operatorCtx("no pipes here")
		b.handleAddItem(ctx)

		msg := ctx.SentMsg.(string)
		if !strings.Contains(msg, "Usage:") {
			t.Errorf("expected usage, got: %s", msg)
		}
	})
}

func TestDelItemCommand(t *testing.T) {
	b, _ := newTestBot(t)
	b.svc.AddItem(operatorID, "Key", "XYZ", 1)

	t.Run("Missing Item", func(t *testing.T) {
		ctx := operatorCtx("ghost")
		b.handleDelItem(ctx)

		msg := ctx.SentMsg.(string)
		if !strings.Contains(msg, "存在しません") {
			t.Errorf("expected not-found msg, got: %s", msg)
		}
	})

	t.Run("Delete Success", func(t *testing.T) {
		ctx := operatorCtx("Key")
		b.handleDelItem(ctx)

		msg := ctx.SentMsg.(string)
		if !strings.Contains(msg, "🗑") {
			t.Errorf("expected delete msg, got: %s", msg)
		}
		if _, ok := b.svc.Get("Key"); ok {
			t.Error("item still present")
		}
	})
}

func TestSetChannelCommand(t *testing.T) {
	b, _ := newTestBot(t)

	t.Run("Current Chat Default", func(t *testing.T) {
		ctx := operatorCtx("")
		b.handleSetChannel(ctx)

		if ch, ok := b.svc.Channel(); !ok || ch != 555 {
			t.Errorf("channel = %v %v, want 555", ch, ok)
		}
	})

	t.Run("Explicit ID", func(t *testing.T) {
		ctx := operatorCtx("42")
		b.handleSetChannel(ctx)

		if ch, _ := b.svc.Channel(); ch != 42 {
			t.Errorf("channel = %v, want 42", ch)
		}
	})
}

func TestPurchaseButton(t *testing.T) {
	b, sent := newTestBot(t)
	b.svc.AddItem(operatorID, "Gift Card", "CODE123", 1)
	b.svc.SetChannel(operatorID, 42)

	t.Run("Success Delivers And Announces", func(t *testing.T) {
		ctx := strangerCtx("")
		ctx.DataVal = "Gift Card"
		if err := b.handleBuy(ctx); err != nil {
			t.Fatal(err)
		}

		if ctx.Response == nil || !strings.Contains(ctx.Response.Text, "✅") {
			t.Errorf("expected success ack, got: %+v", ctx.Response)
		}

		// One DM to the buyer, one achievement message to channel 42.
		if len(*sent) != 2 {
			t.Fatalf("sent %d messages, want 2", len(*sent))
		}
		dm := (*sent)[0]
		if dm.To.Recipient() != "2000" || !strings.Contains(dm.What.(string), "CODE123") {
			t.Errorf("DM wrong: %+v", dm)
		}
		ann := (*sent)[1]
		if ann.To.Recipient() != "42" {
			t.Errorf("announce target = %s, want 42", ann.To.Recipient())
		}
		if !strings.Contains(ann.What.(string), "Gift Card") || !strings.Contains(ann.What.(string), "@someone") {
			t.Errorf("announce text wrong: %v", ann.What)
		}

		receipts, err := b.db.Recent(1)
		if err != nil {
			t.Fatal(err)
		}
		if len(receipts) != 1 || receipts[0].ItemName != "Gift Card" || receipts[0].ChatTitle != "Shop" {
			t.Errorf("receipt wrong: %+v", receipts)
		}
	})

	t.Run("Out Of Stock", func(t *testing.T) {
		ctx := strangerCtx("")
		ctx.DataVal = "Gift Card"
		b.handleBuy(ctx)

		if ctx.Response == nil || !strings.Contains(ctx.Response.Text, "在庫切れ") {
			t.Errorf("expected out-of-stock ack, got: %+v", ctx.Response)
		}
	})

	t.Run("Missing Item", func(t *testing.T) {
		ctx := strangerCtx("")
		ctx.DataVal = "ghost"
		b.handleBuy(ctx)

		if ctx.Response == nil || !strings.Contains(ctx.Response.Text, "見つかりません") {
			t.Errorf("expected not-found ack, got: %+v", ctx.Response)
		}
	})
}

func TestPurchaseUnsetChannelNoAnnounce(t *testing.T) {
	b, sent := newTestBot(t)
	b.svc.AddItem(operatorID, "Sticker", "link", 0)

	ctx := strangerCtx("")
	ctx.DataVal = "Sticker"
	if err := b.handleBuy(ctx); err != nil {
		t.Fatal(err)
	}

	// Only the DM; zero notification attempts.
	if len(*sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(*sent))
	}
}

func TestPurchaseDeliveryFailureKeepsDecrement(t *testing.T) {
	b, _ := newTestBot(t)
	b.svc.AddItem(operatorID, "Key", "XYZ", 1)
	b.send = func(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
		return nil, errors.New("forbidden: bot can't initiate conversation")
	}

	ctx := strangerCtx("")
	ctx.DataVal = "Key"
	b.handleBuy(ctx)

	if ctx.Response == nil || !strings.Contains(ctx.Response.Text, "DM送信に失敗") {
		t.Errorf("expected delivery failure ack, got: %+v", ctx.Response)
	}

	// Stock was spent before delivery and is not refunded.
	it, _ := b.svc.Get("Key")
	if it.Stock != 0 {
		t.Errorf("stock = %d, want 0", it.Stock)
	}

	// No receipt for an undelivered purchase.
	if n, _ := b.db.Count(); n != 0 {
		t.Errorf("receipts = %d, want 0", n)
	}
}

func TestPanelMarkupDeterministic(t *testing.T) {
	b, _ := newTestBot(t)
	b.svc.AddItem(operatorID, "b-item", "2", 0)
	b.svc.AddItem(operatorID, "a-item", "1", 0)

	markup := panelMarkup(b.svc.Items())
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(markup.InlineKeyboard))
	}
	if markup.InlineKeyboard[0][0].Text != "a-item" || markup.InlineKeyboard[1][0].Text != "b-item" {
		t.Errorf("buttons out of order: %+v", markup.InlineKeyboard)
	}
}

func TestPanelCommand(t *testing.T) {
	b, _ := newTestBot(t)
	b.svc.AddItem(operatorID, "Key", "XYZ", 1)

	ctx := strangerCtx("自販機 | ボタンを押して購入")
	if err := b.handlePanel(ctx); err != nil {
		t.Fatal(err)
	}

	msg := ctx.SentMsg.(string)
	if !strings.Contains(msg, "自販機") || !strings.Contains(msg, "ボタンを押して購入") {
		t.Errorf("panel text wrong: %s", msg)
	}
}

func TestHistoryCommand(t *testing.T) {
	b, _ := newTestBot(t)
	b.db.Record(ledger.Receipt{ItemName: "Key", BuyerID: 7, BuyerName: "@u", ChatTitle: "Shop"})

	t.Run("Stranger Denied", func(t *testing.T) {
		ctx := strangerCtx("")
		b.handleHistory(ctx)

		msg := ctx.SentMsg.(string)
		if !strings.Contains(msg, "⛔") {
			t.Errorf("expected denial, got: %s", msg)
		}
	})

	t.Run("Operator Sees Receipts", func(t *testing.T) {
		ctx := operatorCtx("")
		b.handleHistory(ctx)

		msg := ctx.SentMsg.(string)
		if !strings.Contains(msg, "Key") || !strings.Contains(msg, "@u") {
			t.Errorf("history wrong: %s", msg)
		}
	})
}

func TestHeartbeatText(t *testing.T) {
	// 2026-08-30 is a Sunday.
	now := time.Date(2026, 8, 30, 12, 34, 56, 0, jst)
	got := heartbeatText(now)
	want := "✅ BOT稼働中￤2026-08-30（日曜）12:34:56"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSendHeartbeatTargetsOperator(t *testing.T) {
	b, sent := newTestBot(t)
	if err := b.SendHeartbeat(); err != nil {
		t.Fatal(err)
	}
	if len(*sent) != 1 || (*sent)[0].To.Recipient() != "1000" {
		t.Errorf("heartbeat sends: %+v", *sent)
	}
}

func TestAchievementText(t *testing.T) {
	buyer := &tele.User{ID: 7, FirstName: "Taro", LastName: "Yamada"}
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, jst)

	got := achievementText("Gift Card", buyer, "Shop", now)
	for _, want := range []string{"Gift Card", "Taro Yamada", "Shop", "2026-08-30", "（日）"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

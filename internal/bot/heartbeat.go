package bot

import (
	"fmt"
	"log"
	"time"

	tele "gopkg.in/telebot.v3"
)

// Timestamps shown to users are always JST, wherever the process runs.
var jst = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}()

var (
	weekdayJP      = [7]string{"日曜", "月曜", "火曜", "水曜", "木曜", "金曜", "土曜"}
	weekdayShortJP = [7]string{"日", "月", "火", "水", "木", "金", "土"}
)

// RunHeartbeat sends a liveness message to the operator on every tick until
// stop is closed. A failed send waits for the next tick; there is no retry.
func (b *Bot) RunHeartbeat(every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.SendHeartbeat(); err != nil {
				log.Printf("heartbeat: %v", err)
			}
		case <-stop:
			return
		}
	}
}

// SendHeartbeat sends one liveness message to the operator.
func (b *Bot) SendHeartbeat() error {
	_, err := b.send(&tele.User{ID: b.cfg.OperatorID}, heartbeatText(time.Now()))
	return err
}

func heartbeatText(now time.Time) string {
	now = now.In(jst)
	return fmt.Sprintf("✅ BOT稼働中￤%s（%s）%s",
		now.Format("2006-01-02"), weekdayJP[now.Weekday()], now.Format("15:04:05"))
}

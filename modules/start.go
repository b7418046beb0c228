package modules

import (
	"fmt"
	"html"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	tg "github.com/amarnathcjd/gogram/telegram"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

var startTime = time.Now()

func StartHandle(m *tg.NewMessage) error {
	if m.IsPrivate() && strings.TrimSpace(m.Args()) == "help" {
		return HelpHandle(m)
	}
	if !m.IsPrivate() {
		m.Reply("Yo, whadup?")
		return nil
	}
	m.Reply("Hi " + html.EscapeString(senderName(m)) + "! I'm a group management bot. Add me to a group as an admin and I'll keep it in order.\nSee /help for what I can do.")
	return nil
}

func PingHandle(m *tg.NewMessage) error {
	start := time.Now()
	sent, err := m.Reply("Pinging...")
	if err != nil {
		return nil
	}
	sent.Edit(fmt.Sprintf("<code>Pong!</code> <code>%s</code>", time.Since(start).Round(time.Millisecond)))
	return nil
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatUint(n, 10) + " B"
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func StatsHandler(m *tg.NewMessage) error {
	s, err := Store.Stats()
	if err != nil {
		log.Error("stats", zap.Error(err))
		m.Reply("Failed to read stats.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("<b>Current stats:</b>\n")
	fmt.Fprintf(&sb, " - %d users, across %d chats\n", s.Users, s.Chats)
	fmt.Fprintf(&sb, " - %d overall warns, across %d users\n", s.Warns, s.WarnedUsers)
	fmt.Fprintf(&sb, " - %d warn filters\n", s.WarnFilters)
	fmt.Fprintf(&sb, " - %d blacklist triggers\n", s.BlacklistWords)
	fmt.Fprintf(&sb, " - %d notes\n", s.Notes)
	fmt.Fprintf(&sb, " - %d gbanned users\n", s.Gbans)
	fmt.Fprintf(&sb, " - %d users are AFK\n", s.AFK)

	sb.WriteString("\n<b>System:</b>\n")
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			fmt.Fprintf(&sb, " - Process memory: %s\n", humanBytes(mi.RSS))
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(&sb, " - Host memory: %s / %s (%.1f%%)\n", humanBytes(vm.Used), humanBytes(vm.Total), vm.UsedPercent)
	}
	fmt.Fprintf(&sb, " - Goroutines: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&sb, " - Uptime: %s\n", time.Since(startTime).Round(time.Second))

	m.Reply(sb.String())
	return nil
}

func IDHandle(m *tg.NewMessage) error {
	var out strings.Builder
	fmt.Fprintf(&out, "<b>UserID:</b> <code>%d</code>\n", m.SenderID())
	fmt.Fprintf(&out, "<b>ChatID:</b> <code>%d</code>\n", m.ChatID())

	if strings.TrimSpace(m.Args()) != "" {
		if id, _ := extractUser(m); id != 0 {
			fmt.Fprintf(&out, "\n%s's id is <code>%d</code>\n", html.EscapeString(userName(id)), id)
		}
	}

	if m.IsReply() {
		r, err := m.GetReplyMessage()
		if err == nil {
			fmt.Fprintf(&out, "\n<b>Replied user:</b> <code>%d</code>\n", r.SenderID())
			if r.IsForward() {
				fmt.Fprintf(&out, "<b>Forwarded from:</b> <code>%d</code>\n", m.Client.GetPeerID(r.Message.FwdFrom.FromID))
			}
			if _, fileID := storedMedia(r); fileID != "" {
				fmt.Fprintf(&out, "<b>File id:</b> <code>%s</code>\n", fileID)
			}
		}
	}

	m.Reply(out.String())
	return nil
}

func init() {
	Mods.AddModule("Misc", `<b>Misc</b>

<b>Commands:</b>
 - /start - Check that the bot is alive
 - /ping - Response time
 - /id [user] - Your id, the chat id, or the id of a user or replied message
 - /stats - Bot statistics (owner only)`)
}

package modules

import (
	"fmt"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"

	"modbot/config"
	"modbot/modules/db"
	"modbot/modules/moderation"
)

var (
	Client  *tg.Client
	Cfg     *config.Config
	Store   *db.DB
	Mod     *moderation.Engine
	BotID   int64
	members *moderation.MemberCache
	log     = zap.NewNop()
)

// Setup wires the client, the store and the moderation engine together.
// It must run after login.
func Setup(c *tg.Client, cfg *config.Config, store *db.DB, logger *zap.Logger) error {
	me, err := c.GetMe()
	if err != nil {
		return fmt.Errorf("get me: %w", err)
	}

	cache, err := moderation.NewMemberCache(&tgAPI{c: c}, 10_000, cfg.AdminCacheTTL)
	if err != nil {
		return fmt.Errorf("member cache: %w", err)
	}

	Client, Cfg, Store, BotID, members, log = c, cfg, store, me.ID, cache, logger
	Mod = moderation.New(store, cache, logger.Named("moderation"), moderation.Options{
		BotID:           me.ID,
		Staff:           isStaff,
		StrictGban:      cfg.StrictGban,
		GbanConcurrency: cfg.GbanConcurrency,
		GbanCallsPerSec: cfg.GbanRate,
	})
	return nil
}

func Shutdown() {
	if members != nil {
		members.Close()
	}
}

func RegisterHandlers() {
	if Client == nil {
		panic("Client not initialized")
	}

	c := Client
	_, _ = c.UpdatesGetState()
	c.SetCommandPrefixes("/!")

	log.Info("loading modules")

	// bans
	c.On("cmd:ban", BanHandler)
	c.On("cmd:tban", TempBanHandler)
	c.On("cmd:kick", KickHandler)
	c.On("cmd:kickme", KickMeHandler)
	c.On("cmd:unban", UnbanHandler)

	// muting
	c.On("cmd:mute", MuteHandler)
	c.On("cmd:tmute", TempMuteHandler)
	c.On("cmd:unmute", UnmuteHandler)

	// warns
	c.On("cmd:warn", WarnHandler)
	c.On("cmd:warns", WarnsHandler)
	c.On("cmd:resetwarn", ResetWarnsHandler)
	c.On("cmd:resetwarns", ResetWarnsHandler)
	c.On("cmd:addwarn", AddWarnFilterHandler)
	c.On("cmd:nowarn", RemoveWarnFilterHandler)
	c.On("cmd:stopwarn", RemoveWarnFilterHandler)
	c.On("cmd:warnlist", WarnFiltersHandler)
	c.On("cmd:warnfilters", WarnFiltersHandler)
	c.On("cmd:warnlimit", WarnLimitHandler)
	c.On("cmd:strongwarn", StrongWarnHandler)
	c.On("cmd:warnaction", WarnActionHandler)
	c.On("callback:rmwarn_", RemoveWarnCallback)

	// blacklist
	c.On("cmd:blacklist", BlacklistHandler)
	c.On("cmd:addblacklist", AddBlacklistHandler)
	c.On("cmd:unblacklist", RemoveBlacklistHandler)
	c.On("cmd:rmblacklist", RemoveBlacklistHandler)
	c.On("cmd:unblacklistall", ClearBlacklistHandler)
	c.On("cmd:blaction", BlacklistActionHandler)

	// antiflood
	c.On("cmd:setflood", SetFloodHandler)
	c.On("cmd:flood", FloodHandler)

	// greetings
	c.On("cmd:welcome", WelcomeToggleHandler)
	c.On("cmd:goodbye", GoodbyeToggleHandler)
	c.On("cmd:setwelcome", SetWelcomeHandler)
	c.On("cmd:setgoodbye", SetGoodbyeHandler)
	c.On("cmd:resetwelcome", ResetWelcomeHandler)
	c.On("cmd:resetgoodbye", ResetGoodbyeHandler)
	c.On("cmd:cleanwelcome", CleanWelcomeHandler)
	c.On("cmd:cleanservice", CleanServiceHandler)
	c.On("cmd:welcomehelp", WelcomeHelpHandler)
	c.On(tg.OnParticipant, ParticipantHandler)

	// notes
	c.On("cmd:save", SaveNoteHandler)
	c.On("cmd:get", GetNoteHandler)
	c.On("cmd:clear", ClearNoteHandler)
	c.On("cmd:notes", ListNotesHandler)
	c.On("cmd:saved", ListNotesHandler)

	// global bans
	c.On("cmd:gban", GbanHandler, tg.Custom(FilterStaff))
	c.On("cmd:ungban", UngbanHandler, tg.Custom(FilterStaff))
	c.On("cmd:gbanlist", GbanListHandler, tg.Custom(FilterStaff))
	c.On("cmd:gbanstat", GbanStatHandler)

	// log channel, afk, backups and misc
	c.On("cmd:setlog", SetLogHandler)
	c.On("cmd:unsetlog", UnsetLogHandler)
	c.On("cmd:afk", AFKHandler)
	c.On("cmd:export", ExportHandler)
	c.On("cmd:import", ImportHandler)
	c.On("cmd:stats", StatsHandler, tg.Custom(FilterOwner))
	c.On("cmd:id", IDHandle)
	c.On("cmd:ping", PingHandle)
	c.On("cmd:start", StartHandle)
	c.On("cmd:help", HelpHandle)
	c.On("callback:helpmenu", HelpBackCallback)

	c.On(tg.OnNewMessage, MessageWatcher)
	c.AddActionHandler(ServiceWatcher)

	Mods.Init(c)
}

func isStaff(userID int64) bool {
	return Cfg.IsSudo(userID) || Cfg.IsSupport(userID)
}

func FilterOwner(m *tg.NewMessage) bool {
	if m.SenderID() == Cfg.OwnerID {
		return true
	}
	m.Reply("You are not allowed to use this command")
	return false
}

// FilterStaff admits sudo and support users.
func FilterStaff(m *tg.NewMessage) bool {
	return isStaff(m.SenderID())
}

package modules

import (
	"fmt"
	"sort"
	"strings"

	tg "github.com/amarnathcjd/gogram/telegram"
)

type Modules struct {
	Mod []ModHelp
}

type ModHelp struct {
	Name string
	Help string
}

func (m *Modules) AddModule(name, help string) {
	m.Mod = append(m.Mod, ModHelp{name, help})
}

func (m *Modules) GetHelp(name string) string {
	for _, v := range m.Mod {
		if strings.EqualFold(v.Name, name) {
			return v.Help
		}
	}
	return ""
}

// Sorted returns the modules by name.
func (m *Modules) Sorted() []ModHelp {
	mods := make([]ModHelp, len(m.Mod))
	copy(mods, m.Mod)
	sort.Slice(mods, func(i, j int) bool {
		return mods[i].Name < mods[j].Name
	})
	return mods
}

func (m *Modules) Init(c *tg.Client) {
	for _, v := range m.Mod {
		c.On("callback:help_"+strings.ToLower(v.Name), HelpModuleCallback(v.Name, v.Help))
	}
}

var Mods = Modules{}

func helpMenu() (string, *tg.ReplyInlineMarkup) {
	var buttons []tg.KeyboardButton
	for _, v := range Mods.Sorted() {
		buttons = append(buttons, tg.Button.Data(v.Name, "help_"+strings.ToLower(v.Name)))
	}

	text := `<b>modbot</b>
<i>Keeps your groups clean: bans, warns, filters, greetings and more.</i>

Pick a module below to see its commands. Most commands work with a reply, an @username or a user id.

<b>Available Modules:</b> ` + fmt.Sprint(len(Mods.Mod))
	return text, tg.NewKeyboard().NewColumn(3, buttons...).Build()
}

func HelpHandle(m *tg.NewMessage) error {
	b := tg.Button

	if !m.IsPrivate() {
		m.Reply("Contact me in PM to get the list of possible commands.",
			&tg.SendOptions{
				ReplyMarkup: b.Keyboard(b.Row(b.URL("Help", "t.me/"+m.Client.Me().Username+"?start=help"))),
			})
		return nil
	}

	if name := strings.TrimSpace(m.Args()); name != "" {
		if help := Mods.GetHelp(name); help != "" {
			m.Reply(help)
			return nil
		}
	}

	text, kb := helpMenu()
	m.Reply(text, &tg.SendOptions{ReplyMarkup: kb})
	return nil
}

func HelpModuleCallback(name, help string) func(*tg.CallbackQuery) error {
	return func(c *tg.CallbackQuery) error {
		c.Answer(name)
		c.Edit(help+"\n\n<i>Use /help to see all modules</i>", &tg.SendOptions{
			ReplyMarkup: tg.NewKeyboard().AddRow(
				tg.Button.Data("Back", "helpmenu"),
			).Build(),
		})
		return nil
	}
}

func HelpBackCallback(c *tg.CallbackQuery) error {
	text, kb := helpMenu()
	c.Edit(text, &tg.SendOptions{ReplyMarkup: kb})
	return nil
}

package handlers

import (
	"strings"

	"github.com/ai-assistant-tgbot-go/internal/i18n"
	"github.com/ai-assistant-tgbot-go/internal/models"
)

// Command is a menu action recognised in an inbound message
type Command int

const (
	CommandNone Command = iota
	CommandStart
	CommandModeText
	CommandModeImage
	CommandModeVideo
	CommandClearHistory
	CommandInfo
	CommandDisableAds
)

func (c Command) String() string {
	switch c {
	case CommandStart:
		return "start"
	case CommandModeText:
		return "mode_text"
	case CommandModeImage:
		return "mode_image"
	case CommandModeVideo:
		return "mode_video"
	case CommandClearHistory:
		return "clear_history"
	case CommandInfo:
		return "info"
	case CommandDisableAds:
		return "disable_ads"
	default:
		return "none"
	}
}

// Mode returns the conversation mode selected by a mode command
func (c Command) Mode() (models.Mode, bool) {
	switch c {
	case CommandModeText:
		return models.ModeText, true
	case CommandModeImage:
		return models.ModeImage, true
	case CommandModeVideo:
		return models.ModeVideo, true
	default:
		return models.ModeUnset, false
	}
}

var slashCommands = map[string]Command{
	"/start": CommandStart,
	"/text":  CommandModeText,
	"/image": CommandModeImage,
	"/video": CommandModeVideo,
	"/clear": CommandClearHistory,
	"/info":  CommandInfo,
	"/help":  CommandInfo,
	"/noads": CommandDisableAds,
}

var buttonCommands = map[string]Command{
	i18n.ButtonText:  CommandModeText,
	i18n.ButtonImage: CommandModeImage,
	i18n.ButtonVideo: CommandModeVideo,
	i18n.ButtonClear: CommandClearHistory,
	i18n.ButtonInfo:  CommandInfo,
	i18n.ButtonNoAds: CommandDisableAds,
}

// menuLayout is the reply keyboard shown under every answer
var menuLayout = [][]string{
	{i18n.ButtonText, i18n.ButtonImage},
	{i18n.ButtonVideo, i18n.ButtonInfo},
	{i18n.ButtonClear, i18n.ButtonNoAds},
}

// CommandParser maps message text onto a Command. Button labels of every
// loaded language are accepted.
type CommandParser struct {
	labels map[string]Command
}

// NewCommandParser creates a parser for the localizer's button labels
func NewCommandParser(localizer *i18n.Localizer) *CommandParser {
	labels := make(map[string]Command)
	for id, cmd := range buttonCommands {
		for _, label := range localizer.Labels(id) {
			labels[label] = cmd
		}
	}
	return &CommandParser{labels: labels}
}

// Parse returns CommandNone for free text
func (p *CommandParser) Parse(text string) Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return CommandNone
	}

	if strings.HasPrefix(text, "/") {
		name := strings.Fields(text)[0]
		// "/start@my_bot" in group chats
		if at := strings.Index(name, "@"); at > 0 {
			name = name[:at]
		}
		if cmd, ok := slashCommands[strings.ToLower(name)]; ok {
			return cmd
		}
		return CommandNone
	}

	return p.labels[text]
}

// MenuKeyboard returns the localized rows of the main menu
func MenuKeyboard(localizer *i18n.Localizer, lang string) [][]string {
	rows := make([][]string, 0, len(menuLayout))
	for _, ids := range menuLayout {
		row := make([]string, 0, len(ids))
		for _, id := range ids {
			row = append(row, localizer.Get(lang, id, nil))
		}
		rows = append(rows, row)
	}
	return rows
}

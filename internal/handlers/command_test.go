package handlers

import (
	"testing"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/i18n"
	"github.com/ai-assistant-tgbot-go/internal/models"
)

func newTestParser(t *testing.T) *CommandParser {
	t.Helper()
	localizer, err := i18n.NewLocalizer(&config.I18nConfig{DefaultLanguage: "ru", Languages: []string{"ru", "en"}})
	if err != nil {
		t.Fatalf("NewLocalizer error: %v", err)
	}
	return NewCommandParser(localizer)
}

func TestParseCommand(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		text string
		want Command
	}{
		{"/start", CommandStart},
		{"/start@my_ai_bot", CommandStart},
		{"/start ref123", CommandStart},
		{"/START", CommandStart},
		{"/text", CommandModeText},
		{"/image", CommandModeImage},
		{"/video", CommandModeVideo},
		{"/clear", CommandClearHistory},
		{"/help", CommandInfo},
		{"/info", CommandInfo},
		{"/noads", CommandDisableAds},
		{"📝 Текстовый помощник", CommandModeText},
		{"📝 Text assistant", CommandModeText},
		{"  ℹ️ Информация  ", CommandInfo},
		{"🗑️ Очистить историю", CommandClearHistory},
		{"🚫 Отключить рекламу", CommandDisableAds},
		{"/unknown", CommandNone},
		{"Текстовый помощник", CommandNone},
		{"привет", CommandNone},
		{"", CommandNone},
	}

	for _, tt := range tests {
		if got := p.Parse(tt.text); got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestCommandMode(t *testing.T) {
	if mode, ok := CommandModeVideo.Mode(); !ok || mode != models.ModeVideo {
		t.Fatalf("unexpected mode %q %v", mode, ok)
	}
	if _, ok := CommandClearHistory.Mode(); ok {
		t.Fatalf("clear is not a mode command")
	}
}

func TestMenuKeyboardCoversEveryButton(t *testing.T) {
	localizer, _ := i18n.NewLocalizer(&config.I18nConfig{DefaultLanguage: "ru", Languages: []string{"ru", "en"}})
	p := NewCommandParser(localizer)

	seen := map[Command]bool{}
	for _, row := range MenuKeyboard(localizer, "en") {
		for _, label := range row {
			cmd := p.Parse(label)
			if cmd == CommandNone {
				t.Fatalf("menu label %q does not parse as a command", label)
			}
			seen[cmd] = true
		}
	}
	if len(seen) != len(buttonCommands) {
		t.Fatalf("menu shows %d commands, want %d", len(seen), len(buttonCommands))
	}
}

package internal

import (
	"os"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// tui model struct for all the components and modes
type TUIModel struct {
	textInput  textinput.Model
	api        *APIClient
	controller *RoomController

	username   string
	mode       appMode
	authIntent authIntent

	rooms        []Room
	selectedRoom int

	notices []string
	loading bool

	replyToID string
	wasTyping bool
}

type appMode int

const (
	modeAuthMenu appMode = iota
	modeAuthUsername
	modeAuthPassword
	modeRoomList
	modeRoomCreate
	modeRoomPassword
	modeRoom
)

type authIntent int

const (
	authIntentLogin authIntent = iota
	authIntentSignup
)

func NewTUIModel(api *APIClient, controller *RoomController, username string) *TUIModel {
	input := textinput.New()
	input.CharLimit = 0
	input.Prompt = ""

	if username == "" {
		username = defaultUsername()
	}

	return &TUIModel{
		textInput:  input,
		api:        api,
		controller: controller,
		username:   username,
		mode:       modeAuthMenu,
	}
}

// init user
func defaultUsername() string {
	if user := os.Getenv("WATCHROOM_USER"); user != "" {
		return user
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "anon"
}

func (model *TUIModel) Init() tea.Cmd {
	return model.waitChangeCmd()
}

func (model *TUIModel) addNotice(text string) {
	model.notices = append(model.notices, text)
	if len(model.notices) > 3 {
		model.notices = model.notices[len(model.notices)-3:]
	}
}

func (model *TUIModel) clearNotices() {
	model.notices = nil
}

func (model *TUIModel) promptFor(prompt, placeholder string, masked bool) tea.Cmd {
	model.textInput.SetValue("")
	model.textInput.Prompt = prompt
	model.textInput.Placeholder = placeholder
	if masked {
		model.textInput.EchoMode = textinput.EchoPassword
		model.textInput.EchoCharacter = '•'
	} else {
		model.textInput.EchoMode = textinput.EchoNormal
	}
	return model.textInput.Focus()
}

package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// pre styled colors, all from lipgloss
var (
	appTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	subtitleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).MarginTop(1)
	menuBoxStyle       = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 2).MarginTop(1)
	menuItemStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).PaddingLeft(1)
	menuHotkeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	menuHintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	noticeBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("95")).Padding(1, 2).MarginTop(1)
	chatHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle     = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	messageBodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	playbackBoxStyle   = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("98")).Padding(0, 2).MarginTop(1)
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	messageIDStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	usernameStyle      = lipgloss.NewStyle().Bold(true)
	activeUserStyle    = usernameStyle.Copy().Foreground(lipgloss.Color("213"))
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	replyRefStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	dividerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
	selectedItemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	listItemStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	userColorPalette   = []lipgloss.Color{
		lipgloss.Color("45"),
		lipgloss.Color("81"),
		lipgloss.Color("141"),
		lipgloss.Color("98"),
		lipgloss.Color("63"),
		lipgloss.Color("135"),
		lipgloss.Color("32"),
	}
)

func (model TUIModel) View() string {
	switch model.mode {
	case modeAuthMenu:
		return model.renderAuthMenuView()
	case modeAuthUsername, modeAuthPassword:
		return model.renderAuthPromptView()
	case modeRoomList:
		return model.renderRoomListView()
	case modeRoomCreate:
		return model.renderPrompt("Create a room", "Enter the room name and press Enter.")
	case modeRoomPassword:
		return model.renderPrompt("Room password", "This room is protected. Enter the password.")
	default:
		return model.renderRoomView()
	}
}

func (model TUIModel) renderAuthMenuView() string {
	title := appTitleStyle.Render("WatchRoom")
	subtitle := subtitleStyle.Render("Watch videos together from your terminal")

	options := []string{
		renderMenuOption("1", "Log in"),
		renderMenuOption("2", "Sign up"),
		renderMenuOption("q", "Quit"),
	}

	viewSections := []string{
		lipgloss.JoinVertical(lipgloss.Left, title, subtitle),
		menuBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, options...)),
	}

	if model.loading {
		viewSections = append(viewSections, connectingStyle.Render("Working…"))
	}

	if notices := model.renderNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}

	viewSections = append(viewSections, menuHintStyle.Render("1) Log in  •  2) Sign up  •  q) Quit"))

	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model TUIModel) renderAuthPromptView() string {
	title := "Log in"
	if model.authIntent == authIntentSignup {
		title = "Create an account"
	}
	hint := "Enter your username"
	if model.mode == modeAuthPassword {
		hint = "Enter your password"
	}
	return model.renderPrompt(title, hint)
}

func (model TUIModel) renderPrompt(title, hint string) string {
	header := appTitleStyle.Render(title)
	hintText := menuHintStyle.Render(hint)

	viewSections := []string{header, hintText}

	if model.loading {
		viewSections = append(viewSections, connectingStyle.Render("Working…"))
	}

	if notices := model.renderNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}

	viewSections = append(viewSections, inputBoxStyle.Render(model.textInput.View()))

	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model TUIModel) renderRoomListView() string {
	title := appTitleStyle.Render(fmt.Sprintf("Welcome, %s", model.username))
	subtitle := subtitleStyle.Render(fmt.Sprintf("Rooms available: %d", len(model.rooms)))

	viewSections := []string{title, subtitle}

	if model.loading {
		viewSections = append(viewSections, connectingStyle.Render("Loading rooms…"))
	}

	if notices := model.renderNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}

	var roomLines []string
	if len(model.rooms) == 0 {
		roomLines = append(roomLines, menuHintStyle.Render("No rooms yet. Press N to create one."))
	} else {
		for idx, room := range model.rooms {
			label := room.Name
			if room.HasPassword {
				label += " 🔒"
			}
			if room.Owner == model.username {
				label += " (yours)"
			}
			if idx == model.selectedRoom {
				roomLines = append(roomLines, selectedItemStyle.Render("➤ "+label))
			} else {
				roomLines = append(roomLines, listItemStyle.Render("  "+label))
			}
		}
	}
	viewSections = append(viewSections, menuBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, roomLines...)))

	hints := menuHintStyle.Render("↑/↓ select • Enter join • N new room • R refresh • Q quit")
	viewSections = append(viewSections, hints)

	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model TUIModel) renderRoomView() string {
	room := model.controller.Room()
	roomName := model.controller.RoomID()
	if room != nil {
		roomName = room.Name
	}

	headerSegments := []string{"WatchRoom", fmt.Sprintf("Room %s", roomName)}
	headerSegments = append(headerSegments, fmt.Sprintf("User %s", model.username))
	if participants := model.controller.Participants(); len(participants) > 0 {
		headerSegments = append(headerSegments, fmt.Sprintf("Watching: %s", strings.Join(participants, ", ")))
	}
	header := chatHeaderStyle.Render(strings.Join(headerSegments, dividerStyle))

	var statusLine string
	switch model.controller.SessionState() {
	case StateConnected:
		statusLine = connectedStyle.Render("Connected")
	case StateConnecting:
		statusLine = connectingStyle.Render("Connecting…")
	default:
		statusLine = errorStyle.Render("Disconnected, retrying…")
	}

	sections := []string{header, statusLine}

	sections = append(sections, playbackBoxStyle.Render(model.renderPlaybackLine()))

	if notices := model.renderNotices(); notices != "" {
		sections = append(sections, notices)
	}

	var messageLines []string
	for _, chat := range model.controller.Messages() {
		messageLines = append(messageLines, model.renderChatMessage(chat))
	}
	if len(messageLines) == 0 {
		messageLines = append(messageLines, systemMessageStyle.Render("No messages yet. Say hi and start the conversation."))
	}
	sections = append(sections, messageBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, messageLines...)))

	if typing := model.controller.Typing(); typing.IsTyping && typing.Username != model.username {
		sections = append(sections, connectingStyle.Render(typing.Username+" is typing…"))
	}

	if model.replyToID != "" {
		sections = append(sections, replyRefStyle.Render("Replying to "+model.replyToID+" (send a message or /reply again to change)"))
	}

	sections = append(sections, inputBoxStyle.Render(model.textInput.View()))
	sections = append(sections, menuHintStyle.Render("/url /play /pause /seek /reply /del /link /kick /name /avatar /leave /quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model TUIModel) renderPlaybackLine() string {
	view := model.controller.Playback()
	if view.Mode == ModeNoVideo {
		return systemMessageStyle.Render("No video yet. Share one with /url <link>.")
	}
	kind := ClassifyVideoURL(view.URL)
	return fmt.Sprintf("%s %s %s %s %s",
		menuHotkeyStyle.Render("▶"),
		messageBodyStyle.Render(view.URL),
		timestampStyle.Render(fmt.Sprintf("[%s]", kind)),
		connectedStyle.Render(view.Mode.String()),
		timestampStyle.Render(fmt.Sprintf("at %s", formatPosition(view.Position))),
	)
}

func formatPosition(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func renderMenuOption(hotkey string, label string) string {
	key := menuHotkeyStyle.Render(hotkey)
	return lipgloss.JoinHorizontal(lipgloss.Left, key, menuItemStyle.Render(label))
}

func (model TUIModel) renderNotices() string {
	var notices []string
	for _, text := range model.notices {
		notices = append(notices, systemMessageStyle.Render(text))
	}
	if len(notices) == 0 {
		return ""
	}
	return noticeBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, notices...))
}

// renderChatMessage renders a single log line. It stamps the timestamp, picks
// a color for the sender, and shows the short id so /reply and /del can target it.
func (model TUIModel) renderChatMessage(chat ChatMessage) string {
	timestamp := timestampStyle.Render(fmt.Sprintf("[%s]", chat.Timestamp.Format("15:04:05")))
	if chat.IsNotification() {
		body := systemMessageStyle.Render(chat.Content)
		return lipgloss.JoinHorizontal(lipgloss.Left, timestamp, " ", body)
	}

	var nameStyle lipgloss.Style
	if chat.Username == model.username {
		nameStyle = activeUserStyle
	} else {
		nameStyle = usernameStyle.Copy().Foreground(colorForUser(chat.Username))
	}

	name := nameStyle.Render(chat.Username)
	idTag := messageIDStyle.Render(fmt.Sprintf("(%s)", shortID(chat.ID)))
	bodyText := messageBodyStyle.Render(strings.ReplaceAll(chat.Content, "\n", "\n   "))

	parts := []string{timestamp, " ", idTag, " ", name, ": "}
	if chat.ParentMessage != nil {
		parts = append(parts, replyRefStyle.Render(fmt.Sprintf("↪ %s ", shortID(chat.ParentMessage.ID))))
	}
	parts = append(parts, bodyText)
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// color for users
func colorForUser(name string) lipgloss.Color {
	if len(userColorPalette) == 0 {
		return lipgloss.Color("249")
	}
	if name == "" {
		return userColorPalette[0]
	}
	var sum int
	for _, r := range name {
		sum += int(r)
	}
	return userColorPalette[sum%len(userColorPalette)]
}

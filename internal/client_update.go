package internal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// async event structs
type (
	stateChangedMsg struct{}
	reconnectMsg    struct{}
	authResultMsg   struct {
		ctx SessionContext
		err error
	}
	roomsMsg struct {
		rooms []Room
		err   error
	}
	enterResultMsg struct {
		roomID string
		err    error
	}
	passwordResultMsg struct{ err error }
	actionResultMsg   struct{ err error }
)

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		// Ctrl+C bails out from anywhere; the deferred Leave in app does
		// the session teardown.
		if typedMessage.Type == tea.KeyCtrlC {
			model.controller.Leave()
			return model, tea.Quit
		}
		switch model.mode {
		case modeAuthMenu:
			return model.updateAuthMenu(typedMessage)
		case modeAuthUsername, modeAuthPassword:
			return model.updateAuthPrompt(typedMessage)
		case modeRoomList:
			return model.updateRoomList(typedMessage)
		case modeRoomCreate:
			return model.updateRoomCreate(typedMessage)
		case modeRoomPassword:
			return model.updateRoomPassword(typedMessage)
		case modeRoom:
			return model.updateRoom(typedMessage)
		}

	case stateChangedMsg:
		// re-arm the wait; the render pulls fresh state from the
		// controller's accessors
		if model.mode == modeRoom && model.controller.SessionState() == StateDisconnected {
			return model, tea.Batch(model.waitChangeCmd(), model.scheduleReconnect())
		}
		return model, model.waitChangeCmd()

	case reconnectMsg:
		if model.mode == modeRoom && model.controller.SessionState() == StateDisconnected {
			return model, model.reconnectCmd()
		}
		return model, nil

	case authResultMsg:
		model.loading = false
		if typedMessage.err != nil {
			model.addNotice("Authentication failed: " + typedMessage.err.Error())
			model.mode = modeAuthMenu
			model.textInput.Blur()
			return model, nil
		}
		model.api.SetContext(typedMessage.ctx)
		model.username = typedMessage.ctx.Username
		model.clearNotices()
		model.mode = modeRoomList
		model.loading = true
		model.textInput.Blur()
		return model, model.loadRoomsCmd()

	case roomsMsg:
		model.loading = false
		if typedMessage.err != nil {
			model.addNotice("Could not load rooms: " + typedMessage.err.Error())
			return model, nil
		}
		model.rooms = typedMessage.rooms
		if model.selectedRoom >= len(model.rooms) {
			model.selectedRoom = 0
		}
		return model, nil

	case enterResultMsg:
		model.loading = false
		if errors.Is(typedMessage.err, ErrPasswordRequired) {
			model.mode = modeRoomPassword
			return model, model.promptFor("password> ", "Room password…", true)
		}
		if typedMessage.err != nil {
			model.addNotice("Could not enter room: " + typedMessage.err.Error())
			model.mode = modeRoomList
			return model, nil
		}
		model.clearNotices()
		model.mode = modeRoom
		return model, model.promptFor("> ", "Message or /command…", false)

	case passwordResultMsg:
		model.loading = false
		if errors.Is(typedMessage.err, ErrWrongPassword) {
			model.addNotice("Wrong password, try again.")
			return model, model.promptFor("password> ", "Room password…", true)
		}
		if typedMessage.err != nil {
			model.addNotice("Could not enter room: " + typedMessage.err.Error())
			model.mode = modeRoomList
			model.textInput.Blur()
			return model, nil
		}
		model.clearNotices()
		model.mode = modeRoom
		return model, model.promptFor("> ", "Message or /command…", false)

	case actionResultMsg:
		if typedMessage.err != nil {
			model.addNotice(typedMessage.err.Error())
		}
		return model, nil
	}
	return model, nil
}

func (model *TUIModel) updateAuthMenu(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "1", "l", "L":
		model.authIntent = authIntentLogin
		model.mode = modeAuthUsername
		return model, model.promptFor("name> ", "Username…", false)
	case "2", "s", "S":
		model.authIntent = authIntentSignup
		model.mode = modeAuthUsername
		return model, model.promptFor("name> ", "Username…", false)
	case "q", "Q":
		return model, tea.Quit
	}
	return model, nil
}

func (model *TUIModel) updateAuthPrompt(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		model.mode = modeAuthMenu
		model.textInput.Blur()
		return model, nil
	case tea.KeyEnter:
		trimmed := strings.TrimSpace(model.textInput.Value())
		if trimmed == "" {
			return model, nil
		}
		if model.mode == modeAuthUsername {
			model.username = trimmed
			model.mode = modeAuthPassword
			return model, model.promptFor("password> ", "Password…", true)
		}
		model.loading = true
		model.textInput.Blur()
		if model.authIntent == authIntentSignup {
			return model, model.registerCmd(model.username, trimmed)
		}
		return model, model.loginCmd(model.username, trimmed)
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return model, cmd
}

func (model *TUIModel) updateRoomList(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "up", "k":
		if model.selectedRoom > 0 {
			model.selectedRoom--
		}
		return model, nil
	case "down", "j":
		if model.selectedRoom < len(model.rooms)-1 {
			model.selectedRoom++
		}
		return model, nil
	case "enter":
		if len(model.rooms) == 0 {
			return model, nil
		}
		model.loading = true
		return model, model.enterRoomCmd(model.rooms[model.selectedRoom].ID)
	case "n", "N":
		model.mode = modeRoomCreate
		return model, model.promptFor("room> ", "Room name…", false)
	case "r", "R":
		model.loading = true
		return model, model.loadRoomsCmd()
	case "q", "Q":
		return model, tea.Quit
	}
	return model, nil
}

func (model *TUIModel) updateRoomCreate(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		model.mode = modeRoomList
		model.textInput.Blur()
		return model, nil
	case tea.KeyEnter:
		trimmed := strings.TrimSpace(model.textInput.Value())
		if trimmed == "" {
			return model, nil
		}
		model.loading = true
		model.textInput.Blur()
		return model, model.createRoomCmd(trimmed)
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return model, cmd
}

func (model *TUIModel) updateRoomPassword(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		model.mode = modeRoomList
		model.textInput.Blur()
		return model, nil
	case tea.KeyEnter:
		password := model.textInput.Value()
		if password == "" {
			return model, nil
		}
		model.loading = true
		return model, model.submitPasswordCmd(password)
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return model, cmd
}

func (model *TUIModel) updateRoom(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		model.controller.Leave()
		model.mode = modeRoomList
		model.textInput.Blur()
		model.loading = true
		return model, model.loadRoomsCmd()
	case tea.KeyEnter:
		trimmed := strings.TrimSpace(model.textInput.Value())
		model.textInput.SetValue("")
		if model.wasTyping {
			model.wasTyping = false
			_ = model.controller.SetTyping(false)
		}
		if trimmed == "" {
			return model, nil
		}
		if strings.HasPrefix(trimmed, "/") {
			return model.handleSlashCommand(trimmed)
		}
		replyTo := model.replyToID
		model.replyToID = ""
		return model, model.actionCmd(func() error {
			return model.controller.SendChat(trimmed, replyTo)
		})
	}

	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	// every keystroke rebroadcasts the current state; cessation goes out
	// on send
	typing := strings.TrimSpace(model.textInput.Value()) != ""
	model.wasTyping = typing
	_ = model.controller.SetTyping(typing)
	return model, cmd
}

func (model *TUIModel) handleSlashCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "/quit", "/exit":
		model.controller.Leave()
		return model, tea.Quit

	case "/leave":
		model.controller.Leave()
		model.mode = modeRoomList
		model.textInput.Blur()
		model.loading = true
		return model, model.loadRoomsCmd()

	case "/url":
		if len(args) != 1 {
			model.addNotice("Usage: /url <video url>")
			return model, nil
		}
		return model, model.actionCmd(func() error { return model.controller.SetVideoURL(args[0]) })

	case "/play":
		return model, model.actionCmd(model.controller.Play)

	case "/pause":
		return model, model.actionCmd(model.controller.Pause)

	case "/seek":
		if len(args) != 1 {
			model.addNotice("Usage: /seek <seconds>")
			return model, nil
		}
		seconds, err := strconv.ParseFloat(args[0], 64)
		if err != nil || seconds < 0 {
			model.addNotice("Seek position must be a non-negative number.")
			return model, nil
		}
		return model, model.actionCmd(func() error { return model.controller.Seek(seconds) })

	case "/reply":
		if len(args) != 1 {
			model.addNotice("Usage: /reply <message id>")
			return model, nil
		}
		if model.controller.FindMessage(args[0]) == nil {
			model.addNotice("No such message: " + args[0])
			return model, nil
		}
		model.replyToID = args[0]
		model.addNotice("Replying to " + args[0])
		return model, nil

	case "/del":
		if len(args) != 1 {
			model.addNotice("Usage: /del <message id>")
			return model, nil
		}
		return model, model.actionCmd(func() error { return model.controller.DeleteMessage(args[0]) })

	case "/kick":
		if len(args) != 1 {
			model.addNotice("Usage: /kick <username>")
			return model, nil
		}
		if !model.controller.IsOwner() {
			model.addNotice("Only the room owner can remove participants.")
			return model, nil
		}
		return model, model.actionCmd(func() error { return model.controller.RemoveParticipant(args[0]) })

	case "/link":
		link := model.controller.RoomLink()
		if err := clipboard.WriteAll(link); err != nil {
			model.addNotice("Room link: " + link)
		} else {
			model.addNotice("Room link copied: " + link)
		}
		return model, nil

	case "/avatar":
		if len(args) != 1 {
			model.addNotice("Usage: /avatar <image path>")
			return model, nil
		}
		return model, model.uploadAvatarCmd(args[0])

	case "/name":
		if len(args) == 0 {
			model.addNotice("Usage: /name <new room name>")
			return model, nil
		}
		name := strings.Join(args, " ")
		return model, model.actionCmd(func() error { return model.controller.RenameRoom(name) })

	case "/delroom":
		if !model.controller.IsOwner() {
			model.addNotice("Only the room owner can delete the room.")
			return model, nil
		}
		model.mode = modeRoomList
		model.textInput.Blur()
		return model, tea.Batch(
			model.actionCmd(model.controller.DeleteRoom),
			model.loadRoomsCmd(),
		)

	default:
		model.addNotice(fmt.Sprintf("Unknown command %s", command))
		return model, nil
	}
}

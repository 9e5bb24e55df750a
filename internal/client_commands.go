package internal

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func (model *TUIModel) scheduleReconnect() tea.Cmd {
	const retryDelay = 2 * time.Second
	// we schedule a future poke that nudges Update to try the connection again.
	return tea.Tick(retryDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

// waitChangeCmd blocks on the controller's coalesced change channel and
// converts each tick into a bubbletea message; Update re-arms it.
func (model *TUIModel) waitChangeCmd() tea.Cmd {
	changed := model.controller.Changed()
	return func() tea.Msg {
		<-changed
		return stateChangedMsg{}
	}
}

func (model *TUIModel) loginCmd(username, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, err := model.api.Login(username, password)
		if err != nil {
			return authResultMsg{err: err}
		}
		return authResultMsg{ctx: ctx}
	}
}

func (model *TUIModel) registerCmd(username, password string) tea.Cmd {
	return func() tea.Msg {
		if err := model.api.Register(username, "", password); err != nil {
			return authResultMsg{err: err}
		}
		// registration does not return a token, log in right away
		ctx, err := model.api.Login(username, password)
		if err != nil {
			return authResultMsg{err: err}
		}
		return authResultMsg{ctx: ctx}
	}
}

func (model *TUIModel) loadRoomsCmd() tea.Cmd {
	return func() tea.Msg {
		rooms, err := model.api.ListRooms()
		return roomsMsg{rooms: rooms, err: err}
	}
}

func (model *TUIModel) createRoomCmd(name string) tea.Cmd {
	return func() tea.Msg {
		room, err := model.api.CreateRoom(name, "", "", false)
		if err != nil {
			return actionResultMsg{err: err}
		}
		return enterResultMsg{roomID: room.ID, err: model.controller.Enter(room.ID)}
	}
}

func (model *TUIModel) enterRoomCmd(roomID string) tea.Cmd {
	return func() tea.Msg {
		return enterResultMsg{roomID: roomID, err: model.controller.Enter(roomID)}
	}
}

func (model *TUIModel) submitPasswordCmd(password string) tea.Cmd {
	return func() tea.Msg {
		return passwordResultMsg{err: model.controller.SubmitPassword(password)}
	}
}

func (model *TUIModel) reconnectCmd() tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{err: model.controller.Reconnect()}
	}
}

// uploadAvatarCmd reads the image and posts it to the profile endpoint.
func (model *TUIModel) uploadAvatarCmd(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return actionResultMsg{err: err}
		}
		me, err := model.api.Me()
		if err != nil {
			return actionResultMsg{err: err}
		}
		return actionResultMsg{err: model.api.UploadAvatar(me.ID, path, data)}
	}
}

// actionCmd wraps any room operation whose only feedback is an error.
func (model *TUIModel) actionCmd(action func() error) tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{err: action()}
	}
}

package internal

import (
	tea "github.com/charmbracelet/bubbletea"
)

// entry for bubbletea
func RunClient(api *APIClient, controller *RoomController, username string) error {
	program := tea.NewProgram(NewTUIModel(api, controller, username))
	_, err := program.Run()
	return err
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrNotConnected   = errors.New("bus not connected")
	ErrPublishTimeout = errors.New("publish acknowledgment timed out")
)

// Command is a control request for a single plug.
type Command struct {
	DeviceID  string `json:"device_id"`
	Command   string `json:"command"`
	Parameter string `json:"parameter"`
}

func (c Command) Validate() error {
	if c.DeviceID == "" || c.Command == "" {
		return fmt.Errorf("%w: device_id and command are required", ErrInvalidCommand)
	}
	if strings.ContainsAny(c.DeviceID, "/+#") || strings.ContainsAny(c.Command, "/+#") {
		return fmt.Errorf("%w: device_id and command must be single topic levels", ErrInvalidCommand)
	}
	return nil
}

// Topic returns the bus topic the command is published to.
func (c Command) Topic() string {
	return "cmnd/" + c.DeviceID + "/" + c.Command
}

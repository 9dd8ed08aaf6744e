// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"context"

	"github.com/Thermoquad/flightcore/internal/logging"
	"github.com/Thermoquad/flightcore/pkg/packetcomm"
)

// PowerController runs the companion shutdown sequence.
type PowerController interface {
	PowerOff(ctx context.Context, send func(packetcomm.Packet) error) error
}

// CompanionHandler turns a "companion power off" switch command that reached
// the companion queue into the shutdown sequence instead of transmitting it.
type CompanionHandler struct {
	power PowerController
	log   logging.Logger
}

// NewCompanionHandler creates the handler.
func NewCompanionHandler(power PowerController) *CompanionHandler {
	return &CompanionHandler{power: power, log: logging.New("companion")}
}

// Handle implements Handler.
func (h *CompanionHandler) Handle(ctx context.Context, p packetcomm.Packet, send SendFunc) bool {
	if p.Type != packetcomm.TypeEpsSwitchName {
		return false
	}
	cmd, err := packetcomm.ParseSwitchCommand(p.Payload)
	if err != nil || cmd.Switch != packetcomm.SwitchCompanionPower || !cmd.TurnOff {
		return false
	}

	h.log.Info("shutdown requested by %s", p.Origin)
	if err := h.power.PowerOff(ctx, send); err != nil {
		h.log.Warn("shutdown sequence interrupted: %v", err)
	}
	return true
}

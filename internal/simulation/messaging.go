package simulation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

const (
	SenderUtility = "UTILITY"
	SenderDevice  = "DEVICE"
)

// Commands carried on the utility channel.
const (
	CmdLoadShedPrepare  = "LOAD_SHED_PREPARE"
	CmdLoadShedStart    = "LOAD_SHED_START"
	CmdLoadShedEnd      = "LOAD_SHED_END"
	CmdTariffUpdate     = "TARIFF_UPDATE"
	CmdTariffNormal     = "TARIFF_NORMAL"
	CmdLowBalance       = "LOW_BALANCE"
	CmdMaintenance      = "MAINTENANCE_NOTICE"
	CmdAck              = "ACK"
	CmdRechargeOK       = "RECHARGE_CONFIRMED"
	CmdPaymentConfirmed = "PAYMENT_CONFIRMED"
	CmdCycleReset       = "CYCLE_RESET"
	CmdModePrepaid      = "MODE_PREPAID"
	CmdModePostpaid     = "MODE_POSTPAID"
)

const (
	MessageIntervalMin = 45 * time.Second
	MessageIntervalMax = 60 * time.Second
	MessageProbability = 0.20
)

type utilityCommand struct {
	command     string
	description string
}

var utilityCommands = []utilityCommand{
	{CmdLoadShedPrepare, "Load shedding expected in your area within 30 minutes"},
	{CmdLoadShedStart, "Load shedding started. Low-priority devices will be switched off"},
	{CmdLoadShedEnd, "Load shedding ended. Normal supply restored"},
	{CmdTariffUpdate, "Peak tariff in effect from 6 PM to 10 PM"},
	{CmdTariffNormal, "Normal tariff restored"},
	{CmdLowBalance, "Your prepaid balance is running low. Please recharge soon"},
}

func newMessage(sender, command, description string, at time.Time, incoming bool) domain.Message {
	return domain.Message{
		ID:          uuid.New(),
		Sender:      sender,
		Command:     command,
		Description: description,
		Timestamp:   at,
		IsIncoming:  incoming,
	}
}

func (e *Engine) simulateMessaging(now time.Time, ev *events) {
	if now.Sub(e.lastMessage) < e.messageEvery {
		return
	}
	e.lastMessage = now
	e.messageEvery = uniformDuration(e.rng, MessageIntervalMin, MessageIntervalMax)

	if e.rng.Float64() >= MessageProbability {
		return
	}
	c := utilityCommands[e.rng.IntN(len(utilityCommands))]
	e.receiveCommand(c.command, c.description, now, ev)
}

// receiveCommand logs an incoming utility command, applies its grid effect
// and queues the device acknowledgement. Must be called with mu held.
func (e *Engine) receiveCommand(command, description string, now time.Time, ev *events) {
	e.appendMessage(newMessage(SenderUtility, command, description, now, true), ev)

	switch command {
	case CmdLoadShedStart:
		e.setGrid(domain.GridLoadShedding, ev)
		e.shedLoad(ev)
	case CmdLoadShedEnd:
		e.setGrid(domain.GridStable, ev)
	case CmdTariffUpdate:
		e.setGrid(domain.GridPeakHours, ev)
	case CmdTariffNormal:
		if *e.grid.Load() == domain.GridPeakHours {
			e.setGrid(domain.GridStable, ev)
		}
	case CmdMaintenance:
		e.setGrid(domain.GridMaintenance, ev)
	}
	e.scheduleAck(command, ev)
}

func (e *Engine) scheduleAck(command string, ev *events) {
	desc := "Acknowledged " + command
	if e.cfg.AckDelay <= 0 {
		e.appendMessage(newMessage(SenderDevice, CmdAck, desc, e.now(), false), ev)
		return
	}
	go func() {
		t := time.NewTimer(e.cfg.AckDelay)
		defer t.Stop()
		select {
		case <-e.quit:
			return
		case <-t.C:
		}
		e.step("ack", func(ev *events) {
			e.appendMessage(newMessage(SenderDevice, CmdAck, desc, e.now(), false), ev)
		})
	}()
}

// HandleUtilityCommand injects a command received from an external channel.
// It returns false for an empty command.
func (e *Engine) HandleUtilityCommand(command, description string) bool {
	command = strings.ToUpper(strings.TrimSpace(command))
	if command == "" {
		return false
	}
	e.step("utility-command", func(ev *events) {
		e.receiveCommand(command, description, e.now(), ev)
	})
	e.log.Info().Str("command", command).Msg("utility command received")
	return true
}

// TriggerLoadShedding starts a manual load-shedding event and returns how many
// devices were switched off.
func (e *Engine) TriggerLoadShedding() int {
	var n int
	e.step("load-shed", func(ev *events) {
		e.setGrid(domain.GridLoadShedding, ev)
		e.appendMessage(newMessage(SenderUtility, CmdLoadShedStart,
			"Manual load shedding activated", e.now(), true), ev)
		n = e.shedLoad(ev)
	})
	e.log.Warn().Int("devices_off", n).Msg("load shedding triggered")
	return n
}

// EndLoadShedding restores STABLE grid status. Shed devices stay off.
func (e *Engine) EndLoadShedding() {
	e.step("load-shed-end", func(ev *events) {
		e.setGrid(domain.GridStable, ev)
		e.appendMessage(newMessage(SenderUtility, CmdLoadShedEnd,
			"Load shedding ended. Normal supply restored", e.now(), true), ev)
	})
	e.log.Info().Msg("load shedding ended")
}

// shedLoad switches off every active LOW priority device. Must be called with mu held.
func (e *Engine) shedLoad(ev *events) int {
	current := *e.devices.Load()
	next := make([]domain.Device, len(current))
	n := 0
	for i, d := range current {
		if d.IsOn && d.Priority == domain.PriorityLow {
			d.IsOn = false
			n++
		}
		next[i] = d
	}
	e.storeDevices(next)
	e.appendAnomaly(fmt.Sprintf("Load shedding activated: %d low-priority devices turned off", n), ev)
	return n
}

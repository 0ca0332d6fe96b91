// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/vive_track/internal/config"
	"github.com/relabs-tech/vive_track/internal/log"
)

// FormatTick renders a tick as console lines, one per role.
func FormatTick(m TickMessage) string {
	var b strings.Builder
	state := "live"
	switch {
	case !m.Connected:
		state = "offline"
	case m.Frozen:
		state = "frozen"
	}
	fmt.Fprintf(&b, "[TICK %6d] %s calibrated=%t\n", m.Tick, state, m.Calibrated)
	for _, f := range m.Frames {
		if !f.Available {
			fmt.Fprintf(&b, "  %-13s waiting...\n", f.Role)
			continue
		}
		mark := ' '
		if !f.Tracked {
			mark = '*'
		}
		o := f.Frame.Origin
		fmt.Fprintf(&b, "  %-13s%c pos=(%6.3f %6.3f %6.3f)", f.Role, mark, o[0], o[1], o[2])
		if in := f.Input; in != nil {
			fmt.Fprintf(&b, " trig=%.2f", in.TriggerValue)
			if in.TriggerClicked {
				b.WriteString(" CLICK")
			}
			if in.TouchPadTouched {
				fmt.Fprintf(&b, " pad=(%5.2f %5.2f)", in.TouchPadX, in.TouchPadY)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RunConsoleMQTT prints the published frames, at most once per
// CONSOLE_LOG_INTERVAL.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Info("console: connected to MQTT broker", "broker", cfg.MQTTBroker)

	every := time.Duration(cfg.ConsoleLogInterval) * time.Millisecond
	var (
		mu      sync.Mutex
		last    time.Time
		session string
	)
	token := client.Subscribe(cfg.TopicFrames, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m TickMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Warn("console: frames unmarshal error", "err", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if m.Session != session {
			session = m.Session
			fmt.Printf("=== session %s ===\n", session)
		}
		if time.Since(last) < every {
			return
		}
		last = time.Now()
		fmt.Print(FormatTick(m))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Info("console: subscribed", "topic", cfg.TopicFrames)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/vive_track/internal/config"
	"github.com/relabs-tech/vive_track/internal/log"
)

const ssd1306Addr = 0x3C

// DisplayLines turns a tick into the four text lines of the status screen.
func DisplayLines(m TickMessage, have bool) [4]string {
	if !have {
		return [4]string{"", "vive_track", "Waiting...", ""}
	}
	var lines [4]string
	switch {
	case !m.Connected:
		lines[0] = fmt.Sprintf("T%d OFFLINE", m.Tick)
	case m.Frozen:
		lines[0] = fmt.Sprintf("T%d FROZEN", m.Tick)
	default:
		lines[0] = fmt.Sprintf("T%d live", m.Tick)
	}
	if m.Calibrated {
		lines[0] += " cal"
	}

	tracked := 0
	for _, f := range m.Frames {
		if f.Tracked {
			tracked++
		}
	}
	lines[1] = fmt.Sprintf("tracked %d/%d", tracked, len(m.Frames))

	f, ok := m.Find("controller#0")
	if !ok || !f.Available {
		lines[2] = "ctrl0 --"
		return lines
	}
	o := f.Frame.Origin
	lines[2] = fmt.Sprintf("%5.2f %5.2f %5.2f", o[0], o[1], o[2])
	if f.Input != nil {
		lines[3] = fmt.Sprintf("trig %.2f", f.Input.TriggerValue)
	}
	return lines
}

func drawLines(dev *ssd1306.Dev, lines [4]string) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return dev.Draw(dev.Bounds(), img, image.Point{})
}

// RunDisplay shows the tracker status on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	// the upstream driver always talks to 0x3C
	if cfg.DisplayI2CAddr != ssd1306Addr {
		return fmt.Errorf("display: SSD1306 driver only supports address 0x%02X, got 0x%02X", ssd1306Addr, cfg.DisplayI2CAddr)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Info("display: initialized", "addr", fmt.Sprintf("0x%02X", cfg.DisplayI2CAddr))

	if err := drawLines(dev, DisplayLines(TickMessage{}, false)); err != nil {
		log.Warn("display: error showing splash", "err", err)
	}

	var (
		mu   sync.RWMutex
		last TickMessage
		have bool
	)

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Info("display: connected to MQTT broker", "broker", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicFrames, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m TickMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Warn("display: frames unmarshal error", "err", err)
			return
		}
		mu.Lock()
		last, have = m, true
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Info("display: starting update loop")
	for range ticker.C {
		mu.RLock()
		lines := DisplayLines(last, have)
		mu.RUnlock()

		if err := drawLines(dev, lines); err != nil {
			log.Warn("display: error updating", "err", err)
		}
	}
	return nil
}
